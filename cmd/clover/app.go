package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/customer"
	"github.com/Ramsey-B/clover/internal/repositories/fieldweight"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/duplicates"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/monitor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/dedupeconfig"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// customerStore is what both the Postgres and in-memory customer stores provide
type customerStore interface {
	duplicates.CustomerStore
	duplicates.Transactor
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
}

// app holds the process-wide collaborators. Optional backends stay nil when disabled.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	zap    *zap.Logger

	db       database.DB
	store    customerStore
	weights  dedupeconfig.Store
	redis    *redis.Client
	producer *kafka.Producer
	graph    *graph.Client

	emitter *events.Emitter
	lineage *graph.LineageService
	service *duplicates.Service
	monitor *monitor.Monitor
	health  *health.Checker

	startup        *startup.Startup
	shutdownTracer func(context.Context) error
}

func newLogger(cfg *config.Config) (*zap.Logger, ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zapCfg.Level = level

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	zapLogger = zapLogger.With(zap.String("app", cfg.AppName))
	return zapLogger, zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func newApp(cfg *config.Config) (*app, error) {
	zapLogger, logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		zap:     zapLogger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.health = health.NewChecker(cfg.Version, a.startup.Ready).WithStatuses(a.startup.Statuses)
	return a, nil
}

func (a *app) setupTracing(ctx context.Context) error {
	switch a.cfg.TracingExporter {
	case "otlp":
		exp, err := exporters.NewOTLPExporter(ctx, a.cfg.OTLP())
		if err != nil {
			return err
		}
		a.shutdownTracer = tracing.Setup(a.cfg.AppName, a.cfg.Version, exp)
	case "log":
		a.shutdownTracer = tracing.Setup(a.cfg.AppName, a.cfg.Version, exporters.NewLogExporter(a.logger))
	}
	return nil
}

// registerBackends adds the storage and messaging backends to the startup sequence
func (a *app) registerBackends() {
	if a.cfg.StoreDriver == config.StoreDriverPostgres {
		a.startup.AddDependency(startup.Func{
			Name: "postgres",
			OnStart: func(ctx context.Context) error {
				db, err := database.Connect(ctx, a.cfg.Database(), a.logger)
				if err != nil {
					return err
				}
				a.db = db
				a.store = customer.NewRepository(db, a.logger)
				a.weights = fieldweight.NewRepository(db, a.logger)
				a.health.AddCheck("postgres", db.PingContext)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return a.db.Close()
			},
		})

		if a.cfg.DatabaseMigrateOnStart {
			a.startup.AddDependency(startup.Func{
				Name:     "migrations",
				Requires: []string{"postgres"},
				OnStart: func(ctx context.Context) error {
					return database.NewMigrationService(a.logger, a.cfg.Migration()).MigratePostgres(a.db, a.cfg.DatabaseName)
				},
			})
		}
	} else {
		a.store = customer.NewMemory()
		a.weights = fieldweight.NewStatic(a.cfg.DedupeDefaults())
	}

	if a.cfg.RedisEnabled {
		a.startup.AddDependency(startup.Func{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, a.cfg.Redis(), a.logger)
				if err != nil {
					return err
				}
				a.redis = client
				a.health.AddCheck("redis", client.Ping)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return a.redis.Close()
			},
		})
	}

	if a.cfg.KafkaEnabled {
		a.startup.AddDependency(startup.Func{
			Name: "kafka",
			OnStart: func(ctx context.Context) error {
				a.producer = kafka.NewProducer(a.cfg.Producer(), a.logger)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return a.producer.Close()
			},
		})
	}

	if a.cfg.GraphDBEnabled {
		a.startup.AddDependency(startup.Func{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(a.cfg.Graph(), a.logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				a.graph = client
				a.health.AddCheck("graph", client.VerifyConnectivity)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return a.graph.Close(ctx)
			},
		})
	}
}

func (a *app) backends() []string {
	names := []string{}
	if a.cfg.StoreDriver == config.StoreDriverPostgres {
		names = append(names, "postgres")
		if a.cfg.DatabaseMigrateOnStart {
			names = append(names, "migrations")
		}
	}
	if a.cfg.RedisEnabled {
		names = append(names, "redis")
	}
	if a.cfg.KafkaEnabled {
		names = append(names, "kafka")
	}
	if a.cfg.GraphDBEnabled {
		names = append(names, "graph")
	}
	return names
}

// registerService wires the duplicate service over whichever backends started
func (a *app) registerService() {
	a.startup.AddDependency(startup.Func{
		Name:     "service",
		Requires: a.backends(),
		OnStart: func(ctx context.Context) error {
			var publisher events.Publisher
			if a.producer != nil {
				publisher = a.producer
			}
			a.emitter = events.NewEmitter(publisher, a.logger)

			var executor graph.Executor
			if a.graph != nil {
				executor = a.graph
			}
			a.lineage = graph.NewLineageService(executor, a.logger)

			a.service = duplicates.NewService(a.logger, a.store, a.weights)
			return nil
		},
	})
}

// registerMonitor schedules the duplicate monitor after the service exists
func (a *app) registerMonitor() {
	if !a.cfg.MonitorEnabled {
		return
	}

	a.startup.AddDependency(startup.Func{
		Name:     "monitor",
		Requires: []string{"service"},
		OnStart: func(ctx context.Context) error {
			var locker monitor.Locker
			if a.redis != nil {
				locker = redis.NewLocker(a.redis, a.cfg.RedisLockPrefix)
			}
			a.monitor = monitor.NewMonitor(a.cfg.Monitor(), a.service, locker, a.emitter, a.logger)
			return a.monitor.Start()
		},
		OnStop: func(ctx context.Context) error {
			return a.monitor.Stop(ctx)
		},
	})
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to stop dependencies")
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to flush traces")
		}
	}
	_ = a.zap.Sync()
}
