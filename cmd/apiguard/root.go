package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/apiguard/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "apiguard",
		Short:         "Resilience gateway for HTTP APIs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or JSON)")

	root.AddCommand(
		newServeCmd(&configPath),
		newValidateCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway in the foreground.

Every configured endpoint is proxied to upstream.target through the rate
limiter, the response cache and the circuit breaker. Health checks are
served on /healthz, /readyz and /health, the admin API under /admin/ when
server.adminEnabled is set, and Prometheus metrics on /metrics when
observability.metricsExporter is "prometheus".

The server drains in-flight requests on SIGINT or SIGTERM.`,
		Example: `  apiguard serve --config apiguard.yaml
  APIGUARD_RATELIMITMAX=50 apiguard serve -c apiguard.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			out, err := cfg.Render()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apiguard %s (%s)\n", Version, Commit)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
