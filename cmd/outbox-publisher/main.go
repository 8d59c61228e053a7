package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/farmlabor-backend/pkg/bootstrap"
	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/registry"
	"github.com/angelmondragon/farmlabor-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, bootstrap.Options{
		Kind:     "outbox-publisher",
		Database: true,
		PubSub: func(cfg *config.Config) []pubsub.Resource {
			return []pubsub.Resource{pubsub.TopicResource(cfg.PubSub.AssignmentTopic)}
		},
	})
	if err != nil {
		rt.Fatal(ctx, "outbox publisher bootstrap failed", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(ctx, "outbox publisher cleanup failed", err)
		}
	}()

	events, err := registry.NewEventRegistry(rt.Config.PubSub)
	if err != nil {
		rt.Fatal(ctx, "failed to build event registry", err)
	}
	conn := rt.DB.DB()
	service, err := NewService(ServiceParams{
		Outbox:        rt.Config.Outbox,
		Logger:        rt.Logger,
		DB:            rt.DB,
		PubSub:        rt.PubSub,
		Repository:    outbox.NewRepository(conn),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(conn),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create outbox publisher", err)
	}

	ctx, stop := rt.SignalContext(ctx)
	defer stop()
	rt.Logger.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "outbox publisher stopped")
}
