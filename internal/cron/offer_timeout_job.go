package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

const defaultSweepBatch = 200

// ExpiredOfferFinder lists ids whose active offers are past their deadline.
type ExpiredOfferFinder func(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

// offerResolver times out the expired offers on one order or transport job.
type offerResolver interface {
	ExpirePendingOffers(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
}

// SweepTarget pairs a finder with the service that resolves what it finds.
type SweepTarget struct {
	Kind     string
	Find     ExpiredOfferFinder
	Resolver offerResolver
}

// OfferTimeoutJobParams configure the offer timeout sweep.
type OfferTimeoutJobParams struct {
	Logger    *logger.Logger
	Targets   []SweepTarget
	BatchSize int
}

// NewOfferTimeoutJob builds the sweep that times out offers the in-process
// monitor missed, for example after a restart or on another replica.
func NewOfferTimeoutJob(params OfferTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Targets) == 0 {
		return nil, fmt.Errorf("at least one sweep target required")
	}
	for _, target := range params.Targets {
		if target.Kind == "" || target.Find == nil || target.Resolver == nil {
			return nil, fmt.Errorf("sweep target %q incomplete", target.Kind)
		}
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &offerTimeoutJob{
		logg:    params.Logger,
		targets: params.Targets,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type offerTimeoutJob struct {
	logg    *logger.Logger
	targets []SweepTarget
	batch   int
	now     func() time.Time
}

func (j *offerTimeoutJob) Name() string { return "offer-timeout-sweep" }

func (j *offerTimeoutJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, target := range j.targets {
		errs = multierr.Append(errs, j.sweep(ctx, target, now))
	}
	return errs
}

func (j *offerTimeoutJob) sweep(ctx context.Context, target SweepTarget, now time.Time) error {
	ids, err := target.Find(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("find expired %s offers: %w", target.Kind, err)
	}

	var errs error
	expired := 0
	for _, id := range ids {
		n, err := target.Resolver.ExpirePendingOffers(ctx, id, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s %s: %w", target.Kind, id, err))
			continue
		}
		expired += n
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"kind":     target.Kind,
		"scanned":  len(ids),
		"expired":  expired,
		"failures": len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "offer timeout sweep complete")
	return errs
}
