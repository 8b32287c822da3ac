// Package config loads apiguard server configuration from YAML or JSON
// files and APIGUARD_* environment variables.
//
// Option names mirror the file keys: cacheTtlSeconds, rateLimitMax,
// rateLimitWindow ("15 minutes"), circuitFailureThreshold and so on, with
// nested server, upstream, identity and observability sections and a list
// of per-endpoint overrides. ${VAR} references in the file are expanded
// before parsing and must be set.
//
// Load never validates. Validate checks every option, including all window
// strings, and reports every problem at once:
//
//	cfg, err := config.Load("apiguard.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	gcfg, _ := cfg.ToGuard()
//	g := guard.New(gcfg)
package config
