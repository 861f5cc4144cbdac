package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func recorder(events *[]string, name string, requires ...string) Func {
	return Func{
		Name:     name,
		Requires: requires,
		OnStart:  func(context.Context) error { *events = append(*events, "start:"+name); return nil },
		OnStop:   func(context.Context) error { *events = append(*events, "stop:"+name); return nil },
	}
}

func TestStartup_DependencyOrder(t *testing.T) {
	var events []string
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(recorder(&events, "http", "postgres", "redis"))
	s.AddDependency(recorder(&events, "postgres"))
	s.AddDependency(recorder(&events, "redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:postgres", "start:redis", "start:http"}, events)
	assert.True(t, s.Ready())
	assert.Equal(t, map[string]string{"http": "started", "postgres": "started", "redis": "started"}, s.Statuses())

	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:http", "stop:redis", "stop:postgres"}, events)
	assert.Equal(t, StatusStopped, s.Status("postgres"))
	assert.False(t, s.Ready())
}

func TestStartup_Retries(t *testing.T) {
	calls := 0
	s := NewStartup(silentLogger(), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{Name: "flaky", OnStart: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	boom := errors.New("down")
	s := NewStartup(silentLogger(), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{Name: "db", OnStart: func(context.Context) error { return boom }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, s.Status("db"))
}

func TestStartup_MissingAndCyclicDependencies(t *testing.T) {
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(Func{Name: "api", Requires: []string{"ghost"}})
	assert.Error(t, s.Start(context.Background()))

	s = NewStartup(silentLogger(), 1)
	s.AddDependency(Func{Name: "a", Requires: []string{"b"}})
	s.AddDependency(Func{Name: "b", Requires: []string{"a"}})
	assert.Error(t, s.Start(context.Background()))
}
