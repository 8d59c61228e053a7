package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type blockingConsumer struct {
	started chan struct{}
}

func (b *blockingConsumer) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct {
	err error
}

func (f failingConsumer) Run(context.Context) error {
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []Dependency{{Name: "redis", Pinger: stubPinger{err: errors.New("refused")}}},
		Consumers:    []Consumer{{Name: "notifications", Loop: failingConsumer{}}},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	err = svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis ping failed") {
		t.Fatalf("expected redis ping failure, got %v", err)
	}
}

func TestConsumerFailureCancelsSiblings(t *testing.T) {
	blocking := &blockingConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []Dependency{{Name: "pubsub", Pinger: stubPinger{}}},
		Consumers: []Consumer{
			{Name: "notifications", Loop: blocking},
			{Name: "broken", Loop: failingConsumer{err: errors.New("subscription deleted")}},
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "broken: subscription deleted") {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after a consumer failed")
	}
}

func TestRunReturnsContextErrorOnShutdown(t *testing.T) {
	blocking := &blockingConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: []Consumer{{Name: "notifications", Loop: blocking}},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	<-blocking.started
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without consumers")
	}
	if _, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []Dependency{{Name: "redis"}},
		Consumers:    []Consumer{{Name: "notifications", Loop: failingConsumer{}}},
	}); err == nil {
		t.Fatal("expected error for nil pinger")
	}
}
