package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
)

// singleHolder is a lock only one replica can hold at a time.
type singleHolder struct{ taken bool }

func (l *singleHolder) Acquire(context.Context) (bool, error) {
	if l.taken {
		return false, nil
	}
	l.taken = true
	return true, nil
}

func (l *singleHolder) Release(context.Context) error {
	l.taken = false
	return nil
}

type countingJob struct {
	name  string
	fail  error
	every time.Duration
	runs  int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.fail
}

// periodic wraps a countingJob so it also reports an interval.
type periodic struct{ *countingJob }

func (p periodic) Every() time.Duration { return p.every }

type panicking string

func (p panicking) Name() string              { return string(p) }
func (p panicking) Run(context.Context) error { panic("nil map") }

type deadlineProbe struct{ sawDeadline bool }

func (d *deadlineProbe) Name() string { return "deadline" }

func (d *deadlineProbe) Run(ctx context.Context) error {
	_, d.sawDeadline = ctx.Deadline()
	return nil
}

func newTestService(t *testing.T, params ServiceParams, jobs ...Job) *Service {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	params.Registry = NewRegistry(jobs...)
	if params.Lock == nil {
		params.Lock = &singleHolder{}
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func cycles(t *testing.T, svc *Service, n int, between func()) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := svc.runCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if between != nil {
			between()
		}
	}
}

func TestCycleKeepsGoingPastFailingJobs(t *testing.T) {
	bad := &countingJob{name: "bad", fail: errors.New("boom")}
	good := &countingJob{name: "good"}
	svc := newTestService(t, ServiceParams{}, bad, panicking("broken"), good)

	cycles(t, svc, 2, nil)
	if bad.runs != 2 || good.runs != 2 {
		t.Fatalf("expected both jobs to run every cycle, got bad=%d good=%d", bad.runs, good.runs)
	}
}

func TestPeriodicJobsWaitOutTheirInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sweep := &countingJob{name: "offer-timeout-sweep"}
	retention := &countingJob{name: "outbox-retention", every: time.Hour}
	svc := newTestService(t, ServiceParams{Clock: func() time.Time { return now }}, sweep, periodic{retention})

	cycles(t, svc, 3, func() { now = now.Add(time.Minute) })
	if sweep.runs != 3 || retention.runs != 1 {
		t.Fatalf("after three minutes: sweep=%d retention=%d", sweep.runs, retention.runs)
	}

	now = now.Add(time.Hour)
	cycles(t, svc, 1, nil)
	if retention.runs != 2 {
		t.Fatalf("retention should run again once the hour passed, ran %d", retention.runs)
	}
}

func TestCycleSkipsWithoutTheLock(t *testing.T) {
	reg := prometheus.NewRegistry()
	sweep := &countingJob{name: "offer-timeout-sweep"}
	svc := newTestService(t, ServiceParams{
		Lock:    &singleHolder{taken: true},
		Metrics: metrics.NewCronJobMetrics(reg),
	}, sweep)

	cycles(t, svc, 1, nil)
	if sweep.runs != 0 {
		t.Fatalf("job ran without the lock %d times", sweep.runs)
	}
	if got := runCounts(t, reg)[[2]string{"offer-timeout-sweep", metrics.CronSkipped}]; got != 1 {
		t.Fatalf("expected one skipped run, got %v", got)
	}
}

func TestCycleRecordsOutcomePerJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestService(t, ServiceParams{Metrics: metrics.NewCronJobMetrics(reg)},
		&countingJob{name: "ok"},
		&countingJob{name: "bad", fail: errors.New("boom")},
		panicking("broken"),
	)

	cycles(t, svc, 2, nil)
	got := runCounts(t, reg)
	for key, want := range map[[2]string]float64{
		{"ok", metrics.CronSucceeded}:    2,
		{"bad", metrics.CronFailed}:      2,
		{"broken", metrics.CronPanicked}: 2,
	} {
		if got[key] != want {
			t.Fatalf("%v: got %v runs, want %v (all: %v)", key, got[key], want, got)
		}
	}
}

func TestJobContextCarriesTimeout(t *testing.T) {
	probe := &deadlineProbe{}
	svc := newTestService(t, ServiceParams{JobTimeout: 30 * time.Second}, probe)

	cycles(t, svc, 1, nil)
	if !probe.sawDeadline {
		t.Fatal("job context should carry the job timeout")
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &singleHolder{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	if _, err := NewService(ServiceParams{Logger: logg}); err == nil {
		t.Fatal("expected error without lock")
	}
}

// runCounts flattens cron_job_runs_total into {job, outcome} -> count.
func runCounts(t *testing.T, reg *prometheus.Registry) map[[2]string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[[2]string]float64{}
	for _, family := range families {
		if family.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range m.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			counts[[2]string{labels["job"], labels["outcome"]}] = m.GetCounter().GetValue()
		}
	}
	return counts
}
