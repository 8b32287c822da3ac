// apiguard serves an upstream HTTP API through the guard pipeline: rate
// limiting, response caching and per-service circuit breaking.
package main

import (
	"context"
	"os"
)

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
