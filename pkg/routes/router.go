// Package routes assembles the HTTP API
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/duplicates"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/customer"
	"github.com/Ramsey-B/clover/pkg/routes/dedupeconfig"
	duplicateroutes "github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/health"
)

// APIPrefix is the path prefix of every API route
const APIPrefix = "/api/v1"

// Dependencies are the collaborators the handlers need. Emitter and Lineage may be nil.
type Dependencies struct {
	ServiceName  string
	Duplicates   *duplicates.Service
	Customers    customer.Store
	DedupeConfig dedupeconfig.Store
	Emitter      *events.Emitter
	Lineage      *graph.LineageService
	Health       *health.Checker
}

// NewRouter builds the echo server with middleware, API routes and /metrics
func NewRouter(deps Dependencies, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	if deps.ServiceName != "" {
		e.Use(otelecho.Middleware(deps.ServiceName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group(APIPrefix)

	if deps.Health != nil {
		deps.Health.Register(api.Group("/health"))
	}
	if deps.Duplicates != nil {
		duplicateroutes.NewHandler(deps.Duplicates, deps.Emitter, deps.Lineage, logger).Register(api.Group("/duplicates"))
	}
	if deps.DedupeConfig != nil {
		dedupeconfig.NewHandler(deps.DedupeConfig, logger).Register(api.Group("/dedupe-config"))
	}
	if deps.Customers != nil {
		customer.NewHandler(deps.Customers, deps.Lineage, logger).Register(api.Group("/customers"))
	}

	return e
}
