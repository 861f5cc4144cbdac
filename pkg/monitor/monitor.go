// Package monitor runs duplicate scans on a schedule and publishes what it finds
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LockKey is the Redis key replicas compete for on every tick
const LockKey = "duplicate-monitor"

// Scanner finds duplicates using the configured defaults
type Scanner interface {
	FindDuplicatesWithDefaults(ctx context.Context, withinDays *int, includeFuzzy *bool) (*models.FindDuplicatesResponse, error)
}

// Locker serializes runs across replicas
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Notifier publishes scan results
type Notifier interface {
	EmitDuplicatesDetected(ctx context.Context, resp *models.FindDuplicatesResponse) error
}

// Config controls the schedule and the per-run bounds
type Config struct {
	Schedule string
	Timeout  time.Duration
	LockTTL  time.Duration
}

// Monitor periodically scans for duplicates. A nil locker runs every tick locally.
type Monitor struct {
	cfg      Config
	scanner  Scanner
	locker   Locker
	notifier Notifier
	logger   ectologger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewMonitor creates a monitor; zero durations default to five minutes
func NewMonitor(cfg Config, scanner Scanner, locker Locker, notifier Notifier, logger ectologger.Logger) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Timeout
	}
	return &Monitor{
		cfg:      cfg,
		scanner:  scanner,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the scan and starts the cron runner
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.cron.AddFunc(m.cfg.Schedule, func() {
		if _, err := m.RunOnce(context.Background()); err != nil {
			m.logger.WithError(err).Error("Scheduled duplicate scan failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add monitor schedule %q: %w", m.cfg.Schedule, err)
	}

	m.entryID = id
	m.cron.Start()
	m.logger.Infof("Duplicate monitor started with schedule %s", m.cfg.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running scan to finish or ctx to expire
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	done := m.cron.Stop()
	m.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one scan. It returns a nil response when another replica holds the lock.
func (m *Monitor) RunOnce(ctx context.Context) (*models.FindDuplicatesResponse, error) {
	ctx = appctx.SetTrigger(ctx, appctx.TriggerMonitor)
	ctx = appctx.SetRequestID(ctx, uuid.New().String())
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "monitor.Monitor.RunOnce")
	defer span.End()

	var resp *models.FindDuplicatesResponse
	run := func(ctx context.Context) error {
		var err error
		resp, err = m.scanner.FindDuplicatesWithDefaults(ctx, nil, nil)
		if err != nil {
			return err
		}
		if m.notifier != nil {
			if err := m.notifier.EmitDuplicatesDetected(ctx, resp); err != nil {
				m.logger.WithContext(ctx).WithError(err).Warn("Failed to publish detected duplicates")
			}
		}
		return nil
	}

	var err error
	if m.locker == nil {
		err = run(ctx)
	} else {
		err = m.locker.WithLock(ctx, LockKey, m.cfg.LockTTL, run)
	}

	if errors.Is(err, redis.ErrLockNotAcquired) {
		metrics.MonitorLockSkips.Inc()
		m.logger.WithContext(ctx).Debug("Duplicate monitor skipped; lock held by another replica")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"groups":      resp.TotalCount,
		"within_days": resp.WithinDays,
	}).Info("Duplicate monitor run finished")
	return resp, nil
}
