// Package startup starts the service's dependencies in dependency order with retries
package startup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Func adapts a pair of functions to a Dependency; a nil stop is a no-op
type Func struct {
	Name     string
	Requires []string
	OnStart  func(ctx context.Context) error
	OnStop   func(ctx context.Context) error
}

func (f Func) GetName() string     { return f.Name }
func (f Func) DependsOn() []string { return f.Requires }

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Startup retries a full start pass with Fibonacci backoff until every dependency is up
type Startup struct {
	logger      ectologger.Logger
	order       []string
	deps        map[string]Dependency
	maxAttempts int
	backoffUnit time.Duration

	mu       sync.RWMutex
	statuses map[string]Status
	started  []string
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		logger:      logger,
		deps:        make(map[string]Dependency),
		statuses:    make(map[string]Status),
		maxAttempts: maxAttempts,
		backoffUnit: time.Second,
	}
}

// WithBackoffUnit sets the duration of one Fibonacci step
func (s *Startup) WithBackoffUnit(d time.Duration) *Startup {
	s.backoffUnit = d
	return s
}

// AddDependency registers a dependency; registration order breaks ties
func (s *Startup) AddDependency(dep Dependency) {
	if _, ok := s.deps[dep.GetName()]; !ok {
		s.order = append(s.order, dep.GetName())
	}
	s.deps[dep.GetName()] = dep
}

func (s *Startup) Start(ctx context.Context) error {
	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = s.startAll(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		wait := time.Duration(a) * s.backoffUnit
		s.logger.Infof("Retrying startup in %s (attempt %d/%d)", wait, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}
	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startAll(ctx context.Context) error {
	for _, name := range s.order {
		if err := s.start(ctx, name, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Startup) start(ctx context.Context, name string, visiting map[string]bool) error {
	dep, ok := s.deps[name]
	if !ok {
		return fmt.Errorf("unknown startup dependency %q", name)
	}
	if s.Status(name) == StatusStarted {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("startup dependency cycle at %q", name)
	}
	visiting[name] = true

	for _, required := range dep.DependsOn() {
		if err := s.start(ctx, required, visiting); err != nil {
			return err
		}
	}

	log := s.logger.WithField("dependency", name)
	log.Infof("Starting dependency '%s'", name)
	if err := dep.Start(ctx); err != nil {
		s.setStatus(name, StatusFailed)
		log.WithError(err).Errorf("Failed to start dependency '%s'", name)
		return fmt.Errorf("dependency %s: %w", name, err)
	}

	s.mu.Lock()
	s.statuses[name] = StatusStarted
	s.started = append(s.started, name)
	s.mu.Unlock()
	return nil
}

// Stop stops started dependencies in reverse start order, continuing past failures
func (s *Startup) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := append([]string(nil), s.started...)
	s.started = nil
	s.mu.Unlock()

	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		log := s.logger.WithField("dependency", name)
		if err := s.deps[name].Stop(ctx); err != nil {
			log.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			s.setStatus(name, StatusFailed)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.setStatus(name, StatusStopped)
		log.Infof("Dependency '%s' stopped", name)
	}
	return firstErr
}

func (s *Startup) Status(name string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[name]
}

// Statuses reports every registered dependency by name
func (s *Startup) Statuses() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.order))
	for _, name := range s.order {
		out[name] = s.statuses[name].String()
	}
	return out
}

// Ready reports whether every registered dependency is started
func (s *Startup) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.order {
		if s.statuses[name] != StatusStarted {
			return false
		}
	}
	return true
}

func (s *Startup) setStatus(name string, status Status) {
	s.mu.Lock()
	s.statuses[name] = status
	s.mu.Unlock()
}
