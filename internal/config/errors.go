package config

import "errors"

var (
	// ErrMissingKey is returned when a parameter lookup names an unknown key.
	ErrMissingKey = errors.New("missing key")

	// ErrParse is returned when a pipeline source cannot be parsed or its
	// expressions cannot be evaluated.
	ErrParse = errors.New("config parse error")
)
