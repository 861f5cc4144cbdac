package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

type fakeScanner struct {
	resp    *models.FindDuplicatesResponse
	err     error
	calls   int
	trigger string
}

func (s *fakeScanner) FindDuplicatesWithDefaults(ctx context.Context, _ *int, _ *bool) (*models.FindDuplicatesResponse, error) {
	s.calls++
	s.trigger = appctx.GetTrigger(ctx)
	return s.resp, s.err
}

type fakeLocker struct {
	held bool
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.held {
		return redis.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fakeNotifier struct {
	sent []*models.FindDuplicatesResponse
	err  error
}

func (n *fakeNotifier) EmitDuplicatesDetected(_ context.Context, resp *models.FindDuplicatesResponse) error {
	n.sent = append(n.sent, resp)
	return n.err
}

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestMonitor_RunOnce(t *testing.T) {
	resp := &models.FindDuplicatesResponse{
		Groups:     []models.DuplicateGroup{{Key: "01012345678", MemberIDs: []int64{1, 2}}},
		WithinDays: 30,
		TotalCount: 1,
	}

	t.Run("scans and notifies under the lock", func(t *testing.T) {
		scanner := &fakeScanner{resp: resp}
		locker := &fakeLocker{}
		notifier := &fakeNotifier{}
		m := NewMonitor(Config{Schedule: "@every 1m"}, scanner, locker, notifier, silentLogger())

		got, err := m.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, resp, got)
		assert.Equal(t, appctx.TriggerMonitor, scanner.trigger)
		assert.Equal(t, []string{LockKey}, locker.keys)
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		scanner := &fakeScanner{resp: resp}
		m := NewMonitor(Config{}, scanner, &fakeLocker{held: true}, &fakeNotifier{}, silentLogger())

		got, err := m.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, scanner.calls)
	})

	t.Run("runs without a locker", func(t *testing.T) {
		scanner := &fakeScanner{resp: resp}
		m := NewMonitor(Config{}, scanner, nil, nil, silentLogger())

		got, err := m.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	})

	t.Run("scan errors are returned", func(t *testing.T) {
		boom := errors.New("config unavailable")
		notifier := &fakeNotifier{}
		m := NewMonitor(Config{}, &fakeScanner{err: boom}, &fakeLocker{}, notifier, silentLogger())

		_, err := m.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, notifier.sent)
	})

	t.Run("notify errors do not fail the run", func(t *testing.T) {
		m := NewMonitor(Config{}, &fakeScanner{resp: resp}, nil, &fakeNotifier{err: errors.New("broker down")}, silentLogger())

		got, err := m.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	})
}

func TestMonitor_StartStop(t *testing.T) {
	m := NewMonitor(Config{Schedule: "not a schedule"}, &fakeScanner{}, nil, nil, silentLogger())
	assert.Error(t, m.Start())

	m = NewMonitor(Config{Schedule: "@every 1h"}, &fakeScanner{}, nil, nil, silentLogger())
	require.NoError(t, m.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Stop(ctx))
}
