package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

// Dependency is checked once before any consumer starts.
type Dependency struct {
	Name   string
	Pinger pinger
}

// Consumer is one named subscription loop.
type Consumer struct {
	Name string
	Loop consumer
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []Dependency
	Consumers    []Consumer
}

// Service runs the Pub/Sub consumers side by side. When one of them exits
// with an error the others are canceled.
type Service struct {
	logg      *logger.Logger
	deps      []Dependency
	consumers []Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, dep := range params.Dependencies {
		if dep.Pinger == nil {
			return nil, fmt.Errorf("%s client is required", dep.Name)
		}
	}
	for _, c := range params.Consumers {
		if c.Loop == nil {
			return nil, fmt.Errorf("%s consumer is required", c.Name)
		}
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.Pinger.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.Name), err)
			return fmt.Errorf("%s ping failed: %w", dep.Name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, c := range s.consumers {
		wg.Add(1)
		go func(c Consumer) {
			defer wg.Done()
			consumerCtx := s.logg.WithField(runCtx, "consumer", c.Name)
			err := c.Loop.Run(consumerCtx)
			if err == nil || errors.Is(err, context.Canceled) {
				s.logg.Info(consumerCtx, "consumer stopped")
				return
			}
			s.logg.Error(consumerCtx, "consumer stopped unexpectedly", err)
			mu.Lock()
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Name, err))
			mu.Unlock()
			cancel()
		}(c)
	}
	wg.Wait()

	if errs != nil {
		return errs
	}
	return ctx.Err()
}
