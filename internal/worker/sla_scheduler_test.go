package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/service"
)

type fakeScanner struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	err     error
	panicOn int32
	block   chan struct{}
}

func (f *fakeScanner) ScanOnce(ctx context.Context) (service.ScanResult, error) {
	n := f.calls.Add(1)
	cur := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.panicOn != 0 && n == f.panicOn {
		panic("scan exploded")
	}
	if f.block != nil {
		<-f.block
	}
	return service.ScanResult{Scanned: 1}, f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	calls    int
	acquired bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil || !f.acquired {
		return nil, false, f.err
	}
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released++
		return nil
	}, true, nil
}

func (f *fakeLocker) snapshot() (calls, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.released
}

func newTestScheduler(scanner Scanner, locker Locker, enabled bool, interval time.Duration) *SLAScheduler {
	deps := SLASchedulerDependencies{
		Scanner:      scanner,
		Logger:       zap.NewNop(),
		Config:       config.SchedulerConfig{Enabled: enabled},
		InitialDelay: 10 * time.Millisecond,
		Interval:     interval,
	}
	if locker != nil {
		deps.Locker = locker
	}
	return NewSLAScheduler(deps)
}

func TestSLASchedulerDoubleStartArmsOneTimer(t *testing.T) {
	scanner := &fakeScanner{}
	s := newTestScheduler(scanner, nil, true, time.Hour)
	t.Cleanup(s.Stop)

	s.Start(context.Background())
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return scanner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), scanner.calls.Load())
	assert.True(t, s.Running())
}

func TestSLASchedulerKeepsTickingAfterErrors(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("store offline")}
	s := newTestScheduler(scanner, nil, true, 10*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(context.Background())

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSLASchedulerRecoversFromPanics(t *testing.T) {
	scanner := &fakeScanner{panicOn: 1}
	s := newTestScheduler(scanner, nil, true, 10*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(context.Background())

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSLASchedulerDisabledIsNoop(t *testing.T) {
	scanner := &fakeScanner{}
	s := newTestScheduler(scanner, nil, false, 10*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	assert.False(t, s.Running())
	assert.Zero(t, scanner.calls.Load())
}

func TestSLASchedulerDoesNotRestartAfterStop(t *testing.T) {
	scanner := &fakeScanner{}
	s := newTestScheduler(scanner, nil, true, time.Hour)

	s.Start(context.Background())
	require.True(t, s.Running())
	s.Stop()
	s.Start(context.Background())

	assert.False(t, s.Running())
}

func TestSLASchedulerStopWaitsForInFlightCycle(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{})}
	s := newTestScheduler(scanner, nil, true, time.Hour)
	s.Start(context.Background())
	require.Eventually(t, func() bool { return scanner.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the cycle finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(scanner.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
}

func TestSLASchedulerSkipsOverlappingTicks(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{})}
	s := newTestScheduler(scanner, nil, true, 5*time.Millisecond)
	s.Start(context.Background())

	require.Eventually(t, func() bool { return scanner.active.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	close(scanner.block)
	s.Stop()

	assert.Equal(t, int32(1), scanner.maxSeen.Load())
}

func TestSLASchedulerSkipsWhenLockHeldElsewhere(t *testing.T) {
	scanner := &fakeScanner{}
	locker := &fakeLocker{acquired: false}
	s := newTestScheduler(scanner, locker, true, 10*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		calls, _ := locker.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, scanner.calls.Load())
}

func TestSLASchedulerReleasesAcquiredLock(t *testing.T) {
	scanner := &fakeScanner{}
	locker := &fakeLocker{acquired: true}
	s := newTestScheduler(scanner, locker, true, time.Hour)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return scanner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	_, released := locker.snapshot()
	assert.Equal(t, 1, released)
}

func TestSLASchedulerScansUnlockedWhenLockErrors(t *testing.T) {
	scanner := &fakeScanner{}
	locker := &fakeLocker{err: errors.New("redis down")}
	s := newTestScheduler(scanner, locker, true, 10*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(context.Background())

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSLASchedulerUsesConfiguredInterval(t *testing.T) {
	s := NewSLAScheduler(SLASchedulerDependencies{
		Scanner: &fakeScanner{},
		Config:  config.SchedulerConfig{Enabled: true, IntervalMS: 500},
	})

	assert.Equal(t, config.MinSchedulerInterval, s.interval)
	assert.Equal(t, DefaultInitialDelay, s.initialDelay)
}

func TestDelayedEveryFirstRunUsesDelay(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	schedule := &delayedEvery{delay: 5 * time.Second, interval: time.Minute}

	assert.Equal(t, base.Add(5*time.Second), schedule.Next(base))
	assert.Equal(t, base.Add(time.Minute), schedule.Next(base))
	assert.Equal(t, base.Add(time.Minute), schedule.Next(base))
}
