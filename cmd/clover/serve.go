package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/routes"
	"github.com/Ramsey-B/clover/pkg/startup"
)

func newServeCmd(load func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the duplicate monitor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := a.setupTracing(ctx); err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	a.registerBackends()
	a.registerService()
	a.registerMonitor()

	var server *http.Server
	serverErr := make(chan error, 1)

	a.startup.AddDependency(startup.Func{
		Name:     "http",
		Requires: []string{"service"},
		OnStart: func(ctx context.Context) error {
			e := routes.NewRouter(routes.Dependencies{
				ServiceName:  a.cfg.AppName,
				Duplicates:   a.service,
				Customers:    a.store,
				DedupeConfig: a.weights,
				Emitter:      a.emitter,
				Lineage:      a.lineage,
				Health:       a.health,
			}, a.logger)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Port),
				Handler:           e,
				ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
				MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
			}

			go func() {
				a.logger.Infof("HTTP server listening on %s", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})

	defer a.close(context.WithoutCancel(ctx))

	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Service started")

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		return nil
	case err := <-serverErr:
		a.logger.WithError(err).Error("HTTP server failed")
		return err
	}
}
