// Package timeouts fires offer deadlines. Each outstanding order or transport
// job holds one timer armed at its deadline; a Redis sorted set mirrors the
// deadlines so that exactly one API process synthesizes each timeout and a
// restarted process can pick them back up.
package timeouts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/redis"
)

// Resolver times out the expired offers of one order or job.
type Resolver interface {
	ExpirePendingOffers(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
}

type deadlineIndex interface {
	ScheduleDeadline(ctx context.Context, key, member string, at time.Time) error
	ClaimDeadline(ctx context.Context, key, member string) (bool, error)
	DeadlinesUntil(ctx context.Context, key string, until time.Time) ([]redis.Deadline, error)
	DeadlineKey(kind string) string
}

const (
	// recoverHorizon bounds how far ahead Recover looks for deadlines.
	recoverHorizon = 7 * 24 * time.Hour

	defaultRetryBackoff = 2 * time.Second
	maxConflictRetries  = 3
)

type timer struct {
	t       *time.Timer
	at      time.Time
	retries int
	fired   bool
}

type MonitorParams struct {
	Index  deadlineIndex
	Logger *logger.Logger
	Grace  time.Duration
	// RetryBackoff spaces out re-fires after a version conflict. Defaults to 2s.
	RetryBackoff time.Duration
	Clock        func() time.Time
}

// Monitor owns the per-key deadline timers.
type Monitor struct {
	mu        sync.Mutex
	index     deadlineIndex
	logg      *logger.Logger
	grace     time.Duration
	backoff   time.Duration
	now       func() time.Time
	resolvers map[string]Resolver
	timers    map[string]*timer
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMonitor builds an idle monitor. Resolvers are attached with Register
// once the services that own each kind exist.
func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Grace < 0 {
		return nil, fmt.Errorf("grace must not be negative")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		index:     params.Index,
		logg:      params.Logger,
		grace:     params.Grace,
		backoff:   backoff,
		now:       clock,
		resolvers: map[string]Resolver{},
		timers:    map[string]*timer{},
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register attaches the resolver for kind.
func (m *Monitor) Register(kind string, resolver Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[kind] = resolver
}

// Arm schedules the deadline for id, replacing any earlier one.
func (m *Monitor) Arm(ctx context.Context, kind string, id uuid.UUID, at time.Time) {
	if m.index != nil {
		if err := m.index.ScheduleDeadline(ctx, m.index.DeadlineKey(kind), id.String(), at); err != nil {
			m.logg.Error(ctx, "failed to index offer deadline", err)
		}
	}
	m.armLocal(kind, id, at, 0)
}

func (m *Monitor) armLocal(kind string, id uuid.UUID, at time.Time, retries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	key := timerKey(kind, id)
	if existing, ok := m.timers[key]; ok {
		existing.t.Stop()
	}
	entry := &timer{at: at, retries: retries}
	delay := at.Sub(m.now()) + m.grace
	if delay < 0 {
		delay = 0
	}
	entry.t = time.AfterFunc(delay, func() { m.fire(kind, id, entry) })
	m.timers[key] = entry
}

// Disarm cancels the deadline for id.
func (m *Monitor) Disarm(ctx context.Context, kind string, id uuid.UUID) {
	m.mu.Lock()
	key := timerKey(kind, id)
	if existing, ok := m.timers[key]; ok {
		existing.t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()

	if m.index != nil {
		if _, err := m.index.ClaimDeadline(ctx, m.index.DeadlineKey(kind), id.String()); err != nil {
			m.logg.Error(ctx, "failed to drop offer deadline", err)
		}
	}
}

// Pending returns how many timers are armed.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Monitor) fire(kind string, id uuid.UUID, entry *timer) {
	m.mu.Lock()
	key := timerKey(kind, id)
	if m.stopped || entry.fired || m.timers[key] != entry {
		m.mu.Unlock()
		return
	}
	entry.fired = true
	delete(m.timers, key)
	resolver := m.resolvers[kind]
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	ctx := m.logg.WithFields(m.ctx, map[string]any{"deadline_kind": kind, "deadline_id": id.String()})
	if resolver == nil {
		m.logg.Warn(ctx, "no resolver registered for deadline kind")
		return
	}
	if m.index != nil {
		claimed, err := m.index.ClaimDeadline(ctx, m.index.DeadlineKey(kind), id.String())
		if err != nil {
			m.logg.Error(ctx, "deadline claim failed; resolving locally", err)
		} else if !claimed {
			m.logg.Debug(ctx, "deadline claimed by another process")
			return
		}
	}

	expired, err := resolver.ExpirePendingOffers(ctx, id, m.now())
	if err != nil {
		m.logg.Error(ctx, "failed to expire offers", err)
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) && entry.retries < maxConflictRetries {
			m.retry(ctx, kind, id, entry.retries+1)
		}
		return
	}
	m.logg.Info(m.logg.WithField(ctx, "expired", expired), "deadline fired")
}

// retry puts a deadline that lost a write race back in the index and re-arms
// it after a short back-off. The sweep remains the fallback once retries run out.
func (m *Monitor) retry(ctx context.Context, kind string, id uuid.UUID, attempt int) {
	at := m.now().Add(time.Duration(attempt) * m.backoff)
	if m.index != nil {
		if err := m.index.ScheduleDeadline(ctx, m.index.DeadlineKey(kind), id.String(), at); err != nil {
			m.logg.Error(ctx, "failed to re-index offer deadline", err)
		}
	}
	m.logg.Warn(m.logg.WithField(ctx, "retry", attempt), "deadline re-armed after conflict")
	m.armLocal(kind, id, at, attempt)
}

// Recover re-arms every indexed deadline of the registered kinds. Deadlines
// already past fire right away.
func (m *Monitor) Recover(ctx context.Context) (int, error) {
	if m.index == nil {
		return 0, nil
	}
	m.mu.Lock()
	kinds := make([]string, 0, len(m.resolvers))
	for kind := range m.resolvers {
		kinds = append(kinds, kind)
	}
	m.mu.Unlock()

	var errs error
	armed := 0
	for _, kind := range kinds {
		deadlines, err := m.index.DeadlinesUntil(ctx, m.index.DeadlineKey(kind), m.now().Add(recoverHorizon))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		for _, d := range deadlines {
			id, err := uuid.Parse(d.Member)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: bad member %q: %w", kind, d.Member, err))
				continue
			}
			m.armLocal(kind, id, d.At, 0)
			armed++
		}
	}
	return armed, errs
}

// Stop cancels every timer and waits for in-flight resolutions.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	for key, entry := range m.timers {
		entry.t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func timerKey(kind string, id uuid.UUID) string {
	return kind + ":" + id.String()
}
