package timeouts

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/redis"
)

type memoryIndex struct {
	mu   sync.Mutex
	sets map[string]map[string]time.Time
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{sets: map[string]map[string]time.Time{}}
}

func (m *memoryIndex) ScheduleDeadline(_ context.Context, key, member string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[key] == nil {
		m.sets[key] = map[string]time.Time{}
	}
	m.sets[key][member] = at
	return nil
}

func (m *memoryIndex) ClaimDeadline(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sets[key][member]; !ok {
		return false, nil
	}
	delete(m.sets[key], member)
	return true, nil
}

func (m *memoryIndex) DeadlinesUntil(_ context.Context, key string, until time.Time) ([]redis.Deadline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []redis.Deadline
	for member, at := range m.sets[key] {
		if !at.After(until) {
			out = append(out, redis.Deadline{Member: member, At: at})
		}
	}
	return out, nil
}

func (m *memoryIndex) DeadlineKey(kind string) string { return "test:deadlines:" + kind }

func (m *memoryIndex) size(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets[m.DeadlineKey(kind)])
}

type recordingResolver struct {
	calls chan uuid.UUID
}

func (r *recordingResolver) ExpirePendingOffers(_ context.Context, id uuid.UUID, _ time.Time) (int, error) {
	r.calls <- id
	return 1, nil
}

// racingResolver loses the version race a fixed number of times before the
// expiry goes through.
type racingResolver struct {
	mu     sync.Mutex
	losses int
	err    error
	calls  chan uuid.UUID
}

func (r *racingResolver) ExpirePendingOffers(_ context.Context, id uuid.UUID, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls <- id
	if r.losses > 0 {
		r.losses--
		return 0, r.err
	}
	return 1, nil
}

func newTestMonitor(t *testing.T, index deadlineIndex) *Monitor {
	t.Helper()
	m, err := NewMonitor(MonitorParams{
		Index:  index,
		Logger: logger.New(logger.Options{ServiceName: "timeouts-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func waitFor(t *testing.T, calls chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-calls:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("resolver was not called")
	}
	return uuid.Nil
}

func expectSilence(t *testing.T, calls chan uuid.UUID, wait time.Duration) {
	t.Helper()
	select {
	case id := <-calls:
		t.Fatalf("unexpected resolution for %s", id)
	case <-time.After(wait):
	}
}

func TestArmFiresOnceAtDeadline(t *testing.T) {
	index := newMemoryIndex()
	m := newTestMonitor(t, index)
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 4)}
	m.Register("orders", resolver)

	id := uuid.New()
	m.Arm(context.Background(), "orders", id, time.Now().Add(20*time.Millisecond))
	if index.size("orders") != 1 {
		t.Fatalf("expected deadline indexed")
	}

	if got := waitFor(t, resolver.calls); got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
	expectSilence(t, resolver.calls, 50*time.Millisecond)
	if index.size("orders") != 0 || m.Pending() != 0 {
		t.Fatalf("fired deadline should be claimed and forgotten")
	}
}

func TestDisarmCancelsDeadline(t *testing.T) {
	index := newMemoryIndex()
	m := newTestMonitor(t, index)
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 1)}
	m.Register("transport", resolver)

	id := uuid.New()
	m.Arm(context.Background(), "transport", id, time.Now().Add(30*time.Millisecond))
	m.Disarm(context.Background(), "transport", id)

	expectSilence(t, resolver.calls, 80*time.Millisecond)
	if index.size("transport") != 0 {
		t.Fatalf("disarm should drop the indexed deadline")
	}
}

func TestRearmReplacesDeadline(t *testing.T) {
	m := newTestMonitor(t, nil)
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 2)}
	m.Register("orders", resolver)

	id := uuid.New()
	m.Arm(context.Background(), "orders", id, time.Now().Add(20*time.Millisecond))
	m.Arm(context.Background(), "orders", id, time.Now().Add(time.Hour))

	expectSilence(t, resolver.calls, 80*time.Millisecond)
	if m.Pending() != 1 {
		t.Fatalf("expected one armed timer, got %d", m.Pending())
	}
}

func TestDeadlineClaimedElsewhereIsSkipped(t *testing.T) {
	index := newMemoryIndex()
	m := newTestMonitor(t, index)
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 1)}
	m.Register("orders", resolver)

	id := uuid.New()
	m.Arm(context.Background(), "orders", id, time.Now().Add(30*time.Millisecond))
	claimed, _ := index.ClaimDeadline(context.Background(), index.DeadlineKey("orders"), id.String())
	if !claimed {
		t.Fatalf("expected to claim the deadline")
	}
	expectSilence(t, resolver.calls, 80*time.Millisecond)
}

func TestRecoverRearmsIndexedDeadlines(t *testing.T) {
	index := newMemoryIndex()
	overdue := uuid.New()
	later := uuid.New()
	_ = index.ScheduleDeadline(context.Background(), index.DeadlineKey("orders"), overdue.String(), time.Now().Add(-time.Minute))
	_ = index.ScheduleDeadline(context.Background(), index.DeadlineKey("orders"), later.String(), time.Now().Add(time.Hour))
	_ = index.ScheduleDeadline(context.Background(), index.DeadlineKey("orders"), "not-a-uuid", time.Now())

	m := newTestMonitor(t, index)
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 2)}
	m.Register("orders", resolver)

	armed, err := m.Recover(context.Background())
	if err == nil {
		t.Fatalf("expected an error for the malformed member")
	}
	if armed != 2 {
		t.Fatalf("expected 2 deadlines re-armed, got %d", armed)
	}
	if got := waitFor(t, resolver.calls); got != overdue {
		t.Fatalf("expected overdue deadline to fire, got %s", got)
	}
	if m.Pending() != 1 {
		t.Fatalf("later deadline should stay armed, got %d", m.Pending())
	}
}

func TestStopPreventsFiring(t *testing.T) {
	m, err := NewMonitor(MonitorParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	resolver := &recordingResolver{calls: make(chan uuid.UUID, 1)}
	m.Register("orders", resolver)
	m.Arm(context.Background(), "orders", uuid.New(), time.Now().Add(20*time.Millisecond))
	m.Stop()

	expectSilence(t, resolver.calls, 60*time.Millisecond)
	m.Arm(context.Background(), "orders", uuid.New(), time.Now())
	if m.Pending() != 0 {
		t.Fatalf("stopped monitor should not arm")
	}
}

func TestConflictRearmsDeadline(t *testing.T) {
	index := newMemoryIndex()
	m, err := NewMonitor(MonitorParams{
		Index:        index,
		Logger:       logger.New(logger.Options{ServiceName: "timeouts-test", Output: io.Discard}),
		RetryBackoff: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	t.Cleanup(m.Stop)
	conflict := pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	resolver := &racingResolver{losses: 1, err: conflict, calls: make(chan uuid.UUID, 4)}
	m.Register("orders", resolver)

	id := uuid.New()
	m.Arm(context.Background(), "orders", id, time.Now())
	waitFor(t, resolver.calls)
	if got := waitFor(t, resolver.calls); got != id {
		t.Fatalf("expected a retry for %s, got %s", id, got)
	}
	expectSilence(t, resolver.calls, 60*time.Millisecond)
	if index.size("orders") != 0 || m.Pending() != 0 {
		t.Fatalf("settled deadline should be forgotten, index=%d pending=%d", index.size("orders"), m.Pending())
	}
}

func TestConflictRetriesAreBounded(t *testing.T) {
	m, err := NewMonitor(MonitorParams{
		Logger:       logger.New(logger.Options{ServiceName: "timeouts-test", Output: io.Discard}),
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	t.Cleanup(m.Stop)
	conflict := pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	resolver := &racingResolver{losses: 100, err: conflict, calls: make(chan uuid.UUID, 8)}
	m.Register("orders", resolver)

	m.Arm(context.Background(), "orders", uuid.New(), time.Now())
	for i := 0; i <= maxConflictRetries; i++ {
		waitFor(t, resolver.calls)
	}
	expectSilence(t, resolver.calls, 50*time.Millisecond)
}

func TestOtherFailuresWaitForTheSweep(t *testing.T) {
	m := newTestMonitor(t, nil)
	resolver := &racingResolver{losses: 1, err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"), calls: make(chan uuid.UUID, 2)}
	m.Register("orders", resolver)

	m.Arm(context.Background(), "orders", uuid.New(), time.Now())
	waitFor(t, resolver.calls)
	expectSilence(t, resolver.calls, 80*time.Millisecond)
}
