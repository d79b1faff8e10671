// Package runner invokes rule actions as external shell processes. It owns
// the action placeholder syntax: {input}, {output}, {input[0]},
// {wildcards.name}, {params.name}, {threads} and {log}; rule wildcards are
// only reachable through the wildcards namespace.
package runner
