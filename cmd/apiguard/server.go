package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/apiguard/config"
	"github.com/jonwraymond/apiguard/guard"
	"github.com/jonwraymond/apiguard/health"
	"github.com/jonwraymond/apiguard/identity"
	"github.com/jonwraymond/apiguard/observe"
	"github.com/jonwraymond/apiguard/observe/exporters"
	"github.com/jonwraymond/apiguard/upstream"
)

const defaultShutdownTimeout = 10 * time.Second

// server owns every component started for one configuration.
type server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration

	guard    *guard.Guard
	observer observe.Observer
	logger   observe.Logger
}

func newServer(ctx context.Context, cfg *config.Config, logOut io.Writer) (*server, error) {
	registry := promclient.NewRegistry()
	obsCfg := cfg.ToObserve(logOut)
	obsCfg.ExporterOptions = []exporters.Option{exporters.WithRegisterer(registry)}

	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, err
	}
	inst, err := observe.NewInstrumentation(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	s := &server{
		addr:            cfg.Server.Addr,
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutMs) * time.Millisecond,
		observer:        obs,
		logger:          inst.Logger,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}

	gcfg, err := cfg.ToGuard()
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	s.guard = guard.New(gcfg, guard.WithInstrumentation(inst))

	if err := s.routes(cfg, registry); err != nil {
		_ = s.close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *server) routes(cfg *config.Config, registry *promclient.Registry) error {
	resolver, err := identity.NewResolver(cfg.ToIdentity())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	opts := []guard.RouterOption{guard.WithResolver(resolver), guard.WithMux(mux)}
	if cfg.Server.MaxBodyBytes > 0 {
		opts = append(opts, guard.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	router, err := guard.NewRouter(s.guard, opts...)
	if err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register(s.guard.Checkers()...)
	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))

	// Operational routes go first so endpoints that collide with them fail
	// registration with an error.
	health.RegisterHandlers(mux, agg)
	if cfg.Server.AdminEnabled {
		mux.Handle("/admin/", guard.AdminHandler(s.guard))
	}
	if cfg.Observability.MetricsExporter == exporters.Prometheus {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	switch {
	case cfg.Upstream.Target != "":
		proxy, err := upstream.New(cfg.ToUpstream())
		if err != nil {
			return err
		}
		endpoints, err := cfg.GuardEndpoints(proxy.Handle)
		if err != nil {
			return err
		}
		for _, ep := range endpoints {
			if err := router.Handle(ep); err != nil {
				return err
			}
		}
		if cfg.Upstream.HealthPath != "" {
			agg.Register(proxy.Checker(cfg.Upstream.HealthPath))
		}
	case len(cfg.Endpoints) > 0:
		return fmt.Errorf("%w: endpoints require upstream.target", config.ErrInvalid)
	}

	s.handler = router
	return nil
}

// serve accepts connections on ln until ctx is done, then drains in-flight
// requests and releases every component.
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info(ctx, "apiguard listening", observe.Field{Key: "addr", Value: ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.logger.Info(shutdownCtx, "apiguard shutting down")
		return errors.Join(srv.Shutdown(shutdownCtx), s.close(shutdownCtx))
	})
	return g.Wait()
}

func (s *server) close(ctx context.Context) error {
	if s.guard != nil {
		s.guard.Close()
	}
	return s.observer.Shutdown(ctx)
}

func runServe(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := newServer(ctx, cfg, logOut)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		_ = s.close(ctx)
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}
