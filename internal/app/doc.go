// Package app wires the pipeline components together: it loads the
// configuration through a format-agnostic loader, populates the rule
// registry, resolves the requested targets into a graph, and hands the graph
// to the executor. It owns the application logger and the watch loop.
package app
