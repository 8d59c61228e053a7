package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlabor-backend/api/routes"
	"github.com/angelmondragon/farmlabor-backend/internal/assignment"
	"github.com/angelmondragon/farmlabor-backend/internal/candidates"
	"github.com/angelmondragon/farmlabor-backend/internal/earnings"
	"github.com/angelmondragon/farmlabor-backend/internal/timeouts"
	"github.com/angelmondragon/farmlabor-backend/internal/transport"
	"github.com/angelmondragon/farmlabor-backend/pkg/bootstrap"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

type deadlineScheduler interface {
	Arm(ctx context.Context, kind string, id uuid.UUID, at time.Time)
	Disarm(ctx context.Context, kind string, id uuid.UUID)
}

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Kind: "api", Database: true, Redis: true})
	if err != nil {
		rt.Fatal(ctx, "api bootstrap failed", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(ctx, "api cleanup failed", err)
		}
	}()
	cfg, logg, dbClient, redisClient := rt.Config, rt.Logger, rt.DB, rt.Redis

	assignmentMetrics := metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer)

	var (
		monitor   *timeouts.Monitor
		deadlines deadlineScheduler
	)
	if cfg.FeatureFlags.InProcessMonitor {
		monitor, err = timeouts.NewMonitor(timeouts.MonitorParams{
			Index:  redisClient,
			Logger: logg,
			Grace:  cfg.Assignment.TimeoutGrace,
		})
		if err != nil {
			rt.Fatal(ctx, "failed to create timeout monitor", err)
		}
		deadlines = monitor
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	candidateRepo := candidates.NewRepository(dbClient.DB())
	earningsRepo := earnings.NewRepository(dbClient.DB())

	assignmentService, err := assignment.NewService(assignment.ServiceParams{
		Repo:       assignment.NewRepository(dbClient.DB()),
		Candidates: candidateRepo,
		Earnings:   earningsRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
		Deadlines:  deadlines,
		Metrics:    assignmentMetrics,
		Logger:     logg,
		Window:     cfg.Assignment.OrderOfferWindow,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create assignment service", err)
	}

	transportService, err := transport.NewService(transport.ServiceParams{
		Repo:       transport.NewRepository(dbClient.DB()),
		Candidates: candidateRepo,
		Earnings:   earningsRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
		Deadlines:  deadlines,
		Metrics:    assignmentMetrics,
		Logger:     logg,
		Window:     cfg.Assignment.TransportOfferWindow,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create transport service", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := rt.SignalContext(ctx)
	defer stop()
	ctx = logg.WithField(ctx, "addr", addr)

	if monitor != nil {
		monitor.Register(assignment.DeadlineKind, assignmentService)
		monitor.Register(transport.DeadlineKind, transportService)
		recovered, err := monitor.Recover(ctx)
		if err != nil {
			// The cron sweep still resolves anything missed here.
			logg.Error(ctx, "failed to recover offer deadlines", err)
		}
		logg.Info(logg.WithField(ctx, "recovered", recovered), "timeout monitor started")
		defer monitor.Stop()
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:             dbClient,
			Redis:          redisClient,
			Assignments:    assignmentService,
			Transport:      transportService,
			Earnings:       earningsRepo,
			MetricsHandler: promhttp.Handler(),
			HTTPMetrics:    metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			rt.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
