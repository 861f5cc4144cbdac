package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const checkTimeout = 5 * time.Second

// Pinger reports whether a backing service answers
type Pinger func(ctx context.Context) error

// Checker serves liveness, readiness and a per-backend health report
type Checker struct {
	mu        sync.RWMutex
	checks    map[string]Pinger
	ready     func() bool
	statuses  func() map[string]string
	version   string
	startTime time.Time
}

// NewChecker creates a health checker. A nil ready func always reports ready.
func NewChecker(version string, ready func() bool) *Checker {
	return &Checker{
		checks:    make(map[string]Pinger),
		ready:     ready,
		version:   version,
		startTime: time.Now(),
	}
}

// WithStatuses adds the startup state of each dependency to the health report
func (c *Checker) WithStatuses(statuses func() map[string]string) *Checker {
	c.statuses = statuses
	return c
}

// AddCheck registers a named backend probe, replacing any probe with the same name
func (c *Checker) AddCheck(name string, ping Pinger) {
	c.mu.Lock()
	c.checks[name] = ping
	c.mu.Unlock()
}

func (c *Checker) Register(g *echo.Group) {
	g.GET("", c.Health)
	g.GET("/live", c.Live)
	g.GET("/ready", c.Ready)
}

type Report struct {
	Healthy      bool                   `json:"healthy"`
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	Backends     map[string]CheckResult `json:"backends"`
	Dependencies map[string]string      `json:"dependencies,omitempty"`
	ReportedAt   time.Time              `json:"reported_at"`
}

type CheckResult struct {
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Health pings every backend in parallel and answers 503 when any of them fails
func (c *Checker) Health(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), checkTimeout)
	defer cancel()

	results := c.ping(reqCtx)

	report := Report{
		Healthy:    true,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Backends:   results,
		ReportedAt: time.Now().UTC(),
	}
	if c.statuses != nil {
		report.Dependencies = c.statuses()
	}
	for _, r := range results {
		if !r.Healthy {
			report.Healthy = false
		}
	}

	code := http.StatusOK
	if !report.Healthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, report)
}

func (c *Checker) ping(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	checks := make(map[string]Pinger, len(c.checks))
	for name, p := range c.checks {
		checks[name] = p
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, p := range checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			start := time.Now()
			err := p(ctx)

			r := CheckResult{Healthy: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				r.Error = err.Error()
			}
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return results
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready == nil || c.ready() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
