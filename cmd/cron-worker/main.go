package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/farmlabor-backend/internal/assignment"
	"github.com/angelmondragon/farmlabor-backend/internal/candidates"
	"github.com/angelmondragon/farmlabor-backend/internal/cron"
	"github.com/angelmondragon/farmlabor-backend/internal/earnings"
	"github.com/angelmondragon/farmlabor-backend/internal/transport"
	"github.com/angelmondragon/farmlabor-backend/pkg/bootstrap"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Kind: "cron-worker", Database: true, Redis: true})
	if err != nil {
		rt.Fatal(ctx, "cron worker bootstrap failed", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(ctx, "cron worker cleanup failed", err)
		}
	}()

	service, err := buildService(rt)
	if err != nil {
		rt.Fatal(ctx, "failed to assemble cron jobs", err)
	}

	ctx, stop := rt.SignalContext(ctx)
	defer stop()
	rt.Logger.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "cron worker stopped")
}

// buildService wires the expiry sweep and outbox retention behind the shared
// lock. Expiry here never arms timers; the api process owns those.
func buildService(rt *bootstrap.Runtime) (*cron.Service, error) {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()
	assignmentMetrics := metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}

	outboxRepo := outbox.NewRepository(conn)
	events := outbox.NewService(outboxRepo, logg)
	candidateRepo := candidates.NewRepository(conn)
	earningsRepo := earnings.NewRepository(conn)
	orderRepo := assignment.NewRepository(conn)
	transportRepo := transport.NewRepository(conn)

	orders, err := assignment.NewService(assignment.ServiceParams{
		Repo:       orderRepo,
		Candidates: candidateRepo,
		Earnings:   earningsRepo,
		Tx:         rt.DB,
		Outbox:     events,
		Metrics:    assignmentMetrics,
		Logger:     logg,
		Window:     cfg.Assignment.OrderOfferWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("assignment service: %w", err)
	}
	haulage, err := transport.NewService(transport.ServiceParams{
		Repo:       transportRepo,
		Candidates: candidateRepo,
		Earnings:   earningsRepo,
		Tx:         rt.DB,
		Outbox:     events,
		Metrics:    assignmentMetrics,
		Logger:     logg,
		Window:     cfg.Assignment.TransportOfferWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("transport service: %w", err)
	}

	sweep, err := cron.NewOfferTimeoutJob(cron.OfferTimeoutJobParams{
		Logger: logg,
		Targets: []cron.SweepTarget{
			{Kind: assignment.DeadlineKind, Find: orderRepo.FindOrdersWithExpiredOffers, Resolver: orders},
			{Kind: transport.DeadlineKind, Find: transportRepo.FindExpired, Resolver: haulage},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("offer timeout job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweep, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
