// Package hcl loads pipeline definitions written in HCL and translates them
// into the format-agnostic config model. It owns the expression surface
// available to pipeline authors: the `params` variable and the `expand`
// function.
package hcl
