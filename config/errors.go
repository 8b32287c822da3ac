package config

import "errors"

var (
	// ErrMissingEnv is returned when a ${VAR} reference names an unset
	// environment variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")

	// ErrInvalid is returned by Validate. The joined errors name each
	// offending option.
	ErrInvalid = errors.New("config: invalid configuration")
)
