package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"property-search/internal/apiclient"
	"property-search/internal/boundary"
	"property-search/internal/config"
	"property-search/internal/handlers"
	"property-search/internal/netstatus"
	"property-search/internal/ratelimit"
	"property-search/internal/render"
	"property-search/internal/scheduler"
	"property-search/internal/search"
	"property-search/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newClient builds the backend client with the configured retry and breaker.
func newClient(cfg *config.Config) *apiclient.Client {
	opts := []apiclient.Option{apiclient.WithTimeout(cfg.Backend.GetTimeout())}
	if cfg.Retry.Enabled {
		opts = append(opts, apiclient.WithRetry(cfg.Retry.Policy()))
	}
	if cfg.Backend.BreakerEnabled {
		opts = append(opts, apiclient.WithBreaker(
			apiclient.NewBreaker(cfg.Backend.BreakerThreshold, cfg.Backend.GetBreakerReset()),
		))
	}
	return apiclient.New(cfg.Backend.BaseURL, opts...)
}

func serve(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(cfg.Server.GinMode)

	client := newClient(cfg)
	pages, err := render.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	sessions, err := session.NewStore(cfg.Session.CookieName, cfg.Session.GetTTL(), cfg.Session.MaxSessions, func() *search.Controller {
		return search.NewController(client)
	})
	if err != nil {
		return err
	}

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour, true)
		slog.Info("rate limiter initialized",
			"per_minute", cfg.RateLimit.RequestsPerMinute,
			"per_hour", cfg.RateLimit.RequestsPerHour)
	}

	var monitor *netstatus.Monitor
	if cfg.Monitor.Enabled {
		monitor = netstatus.NewMonitor(client, cfg.Monitor.GetProbeTimeout())
	}

	sched, err := newScheduler(cfg, monitor, sessions, limiter)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if monitor != nil {
		// first probe without waiting for the schedule
		boundary.Go(jobBackendProbe, func() error { return sched.RunNow(jobBackendProbe) })
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Client:      client,
		Pages:       pages,
		Sessions:    sessions,
		Monitor:     monitor,
		Breaker:     client.Breaker(),
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		LogRequests: cfg.Logging.LogRequests,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

const (
	jobBackendProbe = "backend-probe"
	jobSessionSweep = "session-sweep"
)

func newScheduler(cfg *config.Config, monitor *netstatus.Monitor, sessions *session.Store, limiter *ratelimit.RateLimiter) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler()

	if monitor != nil {
		if err := sched.Add(scheduler.Job{
			Name:    jobBackendProbe,
			Spec:    cfg.Monitor.ProbeSchedule,
			Timeout: cfg.Monitor.GetProbeTimeout(),
			Run:     monitor.Probe,
		}); err != nil {
			return nil, err
		}
	}

	if err := sched.Add(scheduler.Job{
		Name: jobSessionSweep,
		Spec: cfg.Session.SweepSchedule,
		Run: func(ctx context.Context) error {
			removed := sessions.Sweep()
			idle := 0
			if limiter != nil {
				idle = limiter.Sweep()
			}
			if removed > 0 || idle > 0 {
				slog.Info("Scheduler: swept idle state", "sessions", removed, "rate_limit_clients", idle)
			}
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return sched, nil
}
