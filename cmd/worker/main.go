package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/farmlabor-backend/internal/notifications"
	"github.com/angelmondragon/farmlabor-backend/pkg/bootstrap"
	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/notifier"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/farmlabor-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, bootstrap.Options{
		Kind:  "worker",
		Redis: true,
		PubSub: func(cfg *config.Config) []pubsub.Resource {
			return []pubsub.Resource{pubsub.SubscriptionResource(cfg.PubSub.NotificationSubscription)}
		},
	})
	if err != nil {
		rt.Fatal(ctx, "worker bootstrap failed", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(ctx, "worker cleanup failed", err)
		}
	}()

	cfg := rt.Config
	sender, err := notifier.NewClient(
		cfg.Notifier.BaseURL,
		notifier.WithAPIKey(cfg.Notifier.APIKey),
		notifier.WithSenderName(cfg.Notifier.SenderName),
		notifier.WithTimeout(cfg.Notifier.Timeout),
	)
	if err != nil {
		rt.Fatal(ctx, "failed to create notifier client", err)
	}
	manager, err := idempotency.NewManager(rt.Redis, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		rt.Fatal(ctx, "failed to create idempotency manager", err)
	}
	consumer, err := notifications.NewConsumer(sender, rt.PubSub.NotificationSubscription(), manager, rt.Logger)
	if err != nil {
		rt.Fatal(ctx, "failed to create notification consumer", err)
	}

	service, err := NewService(ServiceParams{
		Logger: rt.Logger,
		Dependencies: []Dependency{
			{Name: "redis", Pinger: rt.Redis},
			{Name: "pubsub", Pinger: rt.PubSub},
		},
		Consumers: []Consumer{
			{Name: "assignment-notifications", Loop: consumer},
		},
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create worker service", err)
	}

	ctx, stop := rt.SignalContext(ctx)
	defer stop()
	rt.Logger.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "worker stopped unexpectedly", err)
	}
	rt.Logger.Info(ctx, "worker stopped")
}
