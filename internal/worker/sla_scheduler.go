package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/service"
)

const (
	// DefaultInitialDelay is the wait before the first scan after Start.
	DefaultInitialDelay = 5 * time.Second

	scanLockKey = "helpdesk:sla:scan-lock"
)

// Scanner runs one alert scan.
type Scanner interface {
	ScanOnce(ctx context.Context) (service.ScanResult, error)
}

// Locker grants a short-lived lock shared by every instance.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// SLASchedulerDependencies bundles collaborators for SLAScheduler.
// InitialDelay and Interval override the defaults when positive.
type SLASchedulerDependencies struct {
	Scanner      Scanner
	Locker       Locker
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Config       config.SchedulerConfig
	InitialDelay time.Duration
	Interval     time.Duration
}

// SLAScheduler runs the alert scan on a fixed interval.
type SLAScheduler struct {
	scanner      Scanner
	locker       Locker
	metrics      *observability.Metrics
	logger       *zap.Logger
	enabled      bool
	initialDelay time.Duration
	interval     time.Duration
	lockTTL      time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	stopped bool
}

// NewSLAScheduler creates a scheduler. Nothing runs until Start.
func NewSLAScheduler(deps SLASchedulerDependencies) *SLAScheduler {
	s := &SLAScheduler{
		scanner:      deps.Scanner,
		locker:       deps.Locker,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		enabled:      deps.Config.Enabled,
		initialDelay: deps.InitialDelay,
		interval:     deps.Interval,
		lockTTL:      deps.Config.LockTTL(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.initialDelay <= 0 {
		s.initialDelay = DefaultInitialDelay
	}
	if s.interval <= 0 {
		s.interval = deps.Config.Interval()
	}
	return s
}

// Start arms the scheduler. Only the first call has an effect; it is a no-op
// when the scheduler is disabled or already stopped. Cycles run with ctx and
// end when it is cancelled.
func (s *SLAScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.stopped || s.cron != nil || s.scanner == nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLog := newCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), skipIfRunning(s.metrics, s.logger)),
	)
	c.Schedule(&delayedEvery{delay: s.initialDelay, interval: s.interval}, cron.FuncJob(func() {
		s.runCycle(runCtx)
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.logger.Info("sla scheduler started",
		zap.Duration("initial_delay", s.initialDelay),
		zap.Duration("interval", s.interval))
}

// Stop halts the timer and waits for an in-flight cycle. A stopped scheduler
// cannot be started again.
func (s *SLAScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	s.logger.Info("sla scheduler stopped")
}

// Running reports whether the timer is armed.
func (s *SLAScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *SLAScheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, scanLockKey, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("sla scan lock unavailable, scanning unlocked", zap.Error(err))
		case !acquired:
			s.metrics.RecordSLAScanSkipped("locked")
			s.logger.Debug("sla scan held by another instance")
			return
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Warn("release sla scan lock", zap.Error(err))
				}
			}()
		}
	}

	result, err := s.scanner.ScanOnce(ctx)
	if err != nil {
		s.logger.Error("sla scan failed", zap.Error(err))
		return
	}
	s.logger.Debug("sla scan finished", zap.Int("scanned", result.Scanned), zap.Int("alerts", result.Alerts))
}

// delayedEvery fires once after delay and then every interval.
type delayedEvery struct {
	mu       sync.Mutex
	armed    bool
	delay    time.Duration
	interval time.Duration
}

func (d *delayedEvery) Next(t time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed {
		d.armed = true
		return t.Add(d.delay)
	}
	return t.Add(d.interval)
}

// skipIfRunning drops a tick while the previous cycle is still running.
func skipIfRunning(metrics *observability.Metrics, logger *zap.Logger) cron.JobWrapper {
	return func(job cron.Job) cron.Job {
		slot := make(chan struct{}, 1)
		slot <- struct{}{}
		return cron.FuncJob(func() {
			select {
			case v := <-slot:
				defer func() { slot <- v }()
				job.Run()
			default:
				metrics.RecordSLAScanSkipped("overlap")
				logger.Warn("sla scan still running, skipping tick")
			}
		})
	}
}

// cronLogger adapts zap to cron.Logger. Cron's routine messages go to debug.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
