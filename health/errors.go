package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrMemoryLimit indicates heap usage beyond the critical threshold.
	ErrMemoryLimit = errors.New("health: memory limit exceeded")
)
