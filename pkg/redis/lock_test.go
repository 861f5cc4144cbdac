package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyspace answers SET NX and the release script in memory, so commands never reach a server
type keyspace struct {
	mu   sync.Mutex
	keys map[string]string
}

func (k *keyspace) DialHook(next redis.DialHook) redis.DialHook { return next }

func (k *keyspace) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (k *keyspace) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		k.mu.Lock()
		defer k.mu.Unlock()

		args := cmd.Args()
		switch cmd.Name() {
		case "set", "setnx":
			key, value := fmt.Sprint(args[1]), fmt.Sprint(args[2])
			_, taken := k.keys[key]
			if !taken {
				k.keys[key] = value
			}
			cmd.(*redis.BoolCmd).SetVal(!taken)
		case "evalsha", "eval":
			key, token := fmt.Sprint(args[3]), fmt.Sprint(args[4])
			if k.keys[key] == token {
				delete(k.keys, key)
				cmd.(*redis.Cmd).SetVal(int64(1))
			} else {
				cmd.(*redis.Cmd).SetVal(int64(0))
			}
		default:
			return fmt.Errorf("unexpected command %q", cmd.Name())
		}
		return nil
	}
}

func (k *keyspace) get(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.keys[key]
	return v, ok
}

func (k *keyspace) set(key, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = value
}

func newTestLocker(t *testing.T, prefix string) (*Locker, *keyspace) {
	t.Helper()
	ks := &keyspace{keys: make(map[string]string)}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(ks)
	t.Cleanup(func() { _ = rdb.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewLocker(NewClientFrom(rdb, logger), prefix), ks
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, ks := newTestLocker(t, "")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	token, ok := ks.get("clover:lock:monitor")
	require.True(t, ok)
	assert.Equal(t, lock.token, token)

	_, err = locker.Acquire(ctx, "monitor", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	_, ok = ks.get("clover:lock:monitor")
	assert.False(t, ok)

	again, err := locker.Acquire(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, lock.token, again.token)
}

func TestLock_ReleaseKeepsOtherHoldersKey(t *testing.T) {
	locker, ks := newTestLocker(t, "test:")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)

	// the lock expired and another process took it
	ks.set("test:scan", "someone-else")

	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	token, ok := ks.get("test:scan")
	require.True(t, ok)
	assert.Equal(t, "someone-else", token)
}

func TestLocker_WithLock(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		held      bool
		fnErr     error
		expectErr error
		expectRan bool
	}{
		{name: "runs and releases", expectRan: true},
		{name: "returns fn error and still releases", fnErr: boom, expectErr: boom, expectRan: true},
		{name: "skips fn when lock is taken", held: true, expectErr: ErrLockNotAcquired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker, ks := newTestLocker(t, "")
			if tt.held {
				ks.set("clover:lock:monitor", "other")
			}

			ran := false
			err := locker.WithLock(context.Background(), "monitor", time.Minute, func(ctx context.Context) error {
				ran = true
				_, ok := ks.get("clover:lock:monitor")
				assert.True(t, ok)
				return tt.fnErr
			})

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectRan, ran)

			_, ok := ks.get("clover:lock:monitor")
			assert.Equal(t, tt.held, ok)
		})
	}
}
