package registry

import "errors"

var (
	// ErrDuplicateRule is returned when two rules share a name.
	ErrDuplicateRule = errors.New("duplicate rule name")

	// ErrAmbiguousProducer is returned when two distinct rules both claim to
	// produce the same concrete output path.
	ErrAmbiguousProducer = errors.New("ambiguous producer")
)
