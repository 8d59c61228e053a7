// Package bootstrap brings up the shared runtime of every binary: env and
// config loading, the leveled logger, and whichever of Postgres, Redis and
// Pub/Sub the binary asks for.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/db"
	"github.com/angelmondragon/farmlabor-backend/pkg/instance"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/migrate"
	"github.com/angelmondragon/farmlabor-backend/pkg/pubsub"
	"github.com/angelmondragon/farmlabor-backend/pkg/redis"
)

// Options lists what a binary needs. PubSub names the topics and
// subscriptions that must exist at startup; nil skips Pub/Sub entirely.
type Options struct {
	Kind     string
	Database bool
	Redis    bool
	PubSub   func(*config.Config) []pubsub.Resource
}

// Runtime holds the opened clients. Fields for dependencies that were not
// requested stay nil.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
	PubSub *pubsub.Client

	closers []closer
}

type closer struct {
	name  string
	close func() error
}

// Start loads configuration and dials the requested dependencies in order.
// On failure everything opened so far is closed again.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	boot := logger.New(logger.Options{ServiceName: opts.Kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return &Runtime{Logger: boot}, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = opts.Kind

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: opts.Kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	if err := rt.open(ctx, opts); err != nil {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Error(ctx, "partial startup cleanup failed", cerr)
		}
		return rt, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts Options) error {
	if opts.Database {
		client, err := db.New(ctx, rt.Config.DB, rt.Logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		rt.DB = client
		rt.track("database", client.Close)

		if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client); err != nil {
			return fmt.Errorf("dev migrations: %w", err)
		}
	}
	if opts.Redis {
		client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = client
		rt.track("redis", client.Close)
	}
	if opts.PubSub != nil {
		client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger, opts.PubSub(rt.Config)...)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
		rt.PubSub = client
		rt.track("pubsub", client.Close)
	}
	return nil
}

func (rt *Runtime) track(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, close: fn})
}

// Close releases clients in reverse opening order and reports every failure.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs error
	for _, c := range slices.Backward(rt.closers) {
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errs
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the service
// identity as log fields.
func (rt *Runtime) SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{"instance": instance.GetID()}
	if rt.Config != nil {
		fields["env"] = rt.Config.App.Env
		fields["serviceKind"] = rt.Config.Service.Kind
	}
	return rt.Logger.WithFields(ctx, fields), stop
}

// Fatal logs err and exits with status 1 after closing the runtime.
func (rt *Runtime) Fatal(ctx context.Context, msg string, err error) {
	rt.Logger.Error(ctx, msg, err)
	if cerr := rt.Close(); cerr != nil {
		rt.Logger.Error(ctx, "shutdown cleanup failed", cerr)
	}
	os.Exit(1)
}
