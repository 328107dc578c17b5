package kinjoservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/api"
	"github.com/kafadas/kinjo/internal/auth"
	"github.com/kafadas/kinjo/internal/config"
	"github.com/kafadas/kinjo/internal/factory"
	"github.com/kafadas/kinjo/internal/health"
	"github.com/kafadas/kinjo/internal/logger"
	"github.com/kafadas/kinjo/internal/metrics"
	"github.com/kafadas/kinjo/internal/narrative"
	"github.com/kafadas/kinjo/internal/reflection"
	"github.com/kafadas/kinjo/internal/services"
	"github.com/kafadas/kinjo/internal/trends"
)

// Run starts the kinjo HTTP service and blocks until shutdown or error.
func Run() error {
	log := logger.New("kinjo-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("narrative_provider", cfg.NarrativeProvider).
		Msg("kinjo service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	backend, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer func() { _ = backend.Close() }()
	gen := factory.NewNarrative(cfg, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svcHealth := startHealthCheckers(ctx, cfg, log, backend, gen)
	router := buildRouter(cfg, log, backend, gen, m, svcHealth)

	// Block startup until the store reports healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildRouter constructs the services and wires them to HTTP routes.
func buildRouter(cfg *config.Config, log zerolog.Logger, backend *factory.Backend, gen narrative.Generator, m *metrics.Metrics, svcHealth *health.ServiceHealthChecker) http.Handler {
	st := backend.Store
	profiles := services.NewProfileService(st, log)
	if len(cfg.DevAPIKeys) == 0 {
		log.Warn().Msg("no dev API keys configured; every authenticated request will be rejected")
	}
	reflections := reflection.NewService(st, profiles, log, reflection.Options{
		Narrative: gen,
		AITimeout: cfg.NarrativeTimeout(),
		Debounce:  cfg.RegenerateDebounce(),
		Metrics:   m,
	})
	return api.NewRouter(api.Deps{
		Auth:        auth.NewStatic(cfg.DevAPIKeys),
		Trends:      trends.NewService(st, profiles, m, log),
		Reflections: reflections,
		Profiles:    profiles,
		Moments:     services.NewMomentService(st),
		Categories:  services.NewCategoryService(st),
		People:      services.NewPeopleService(st, log),
		Health:      svcHealth,
		Metrics:     m,
	})
}

// startHealthCheckers starts component checkers and the service-level
// aggregator. Only the store gates service health; the narrative provider is
// reported but optional.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, backend *factory.Backend, gen narrative.Generator) *health.ServiceHealthChecker {
	interval := cfg.HealthInterval()
	probeTimeout := cfg.HealthProbeTimeout()

	storeChecker := health.NewPingChecker("store", backend, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	svcHealth := health.NewServiceHealthChecker(log, storeChecker)

	if p, ok := gen.(health.HealthPinger); ok {
		aiChecker := health.NewPingChecker("narrative", p, log, probeTimeout)
		go aiChecker.Start(ctx, interval)
		svcHealth.Advise(aiChecker)
	}
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// regeneration may wait on the narrative provider
		WriteTimeout: cfg.NarrativeTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}()
	return errCh
}

// startupHealthTimeout is twice the health interval, at least 60 seconds.
func startupHealthTimeout(interval time.Duration) time.Duration {
	if t := 2 * interval; t > time.Minute {
		return t
	}
	return time.Minute
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth interface{ IsHealthy() bool }) error {
	timeout := startupHealthTimeout(cfg.HealthInterval())
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
