package dag

import "errors"

var (
	// ErrNoProducer is returned when a required file neither exists nor is
	// produced by any rule.
	ErrNoProducer = errors.New("no producer found")

	// ErrCyclicDependency is returned when rule resolution revisits a node
	// already on the active resolution path.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnboundWildcard is returned when a template still contains a
	// wildcard that neither the output match nor checkpoint discovery binds.
	ErrUnboundWildcard = errors.New("unbound wildcard")
)
