package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/thistle/config"
	inventoryrepo "github.com/Ramsey-B/thistle/internal/repositories/inventory"
	mergeauditrepo "github.com/Ramsey-B/thistle/internal/repositories/mergeaudit"
	partrepo "github.com/Ramsey-B/thistle/internal/repositories/part"
	referencerepo "github.com/Ramsey-B/thistle/internal/repositories/reference"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/dupecache"
	"github.com/Ramsey-B/thistle/pkg/events"
	"github.com/Ramsey-B/thistle/pkg/kafka"
	"github.com/Ramsey-B/thistle/pkg/matching"
	"github.com/Ramsey-B/thistle/pkg/merging"
	"github.com/Ramsey-B/thistle/pkg/middleware"
	"github.com/Ramsey-B/thistle/pkg/redis"
	"github.com/Ramsey-B/thistle/pkg/routes/duplicates"
	"github.com/Ramsey-B/thistle/pkg/routes/health"
	mergeroute "github.com/Ramsey-B/thistle/pkg/routes/merge"
	mergeauditroute "github.com/Ramsey-B/thistle/pkg/routes/mergeaudit"
	partroute "github.com/Ramsey-B/thistle/pkg/routes/parts"
	"github.com/Ramsey-B/thistle/pkg/startup"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/Ramsey-B/thistle/pkg/tracing/exporters"
)

var version = "dev"

// dependency adapts a start/stop pair to the startup package.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		if b, err := json.Marshal(msg); err == nil {
			fmt.Fprintln(os.Stdout, string(b))
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracing.Setup(ctx, cfg.AppName, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
	}, cfg.TracingEnabled)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	var db database.DB
	var redisClient *redis.Client
	var producer *kafka.Producer

	boot := startup.New(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			db, err = database.Connect(database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				User:            cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			return database.RunMigrations(db.Unsafe(), cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, logger)
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		stop: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	if cfg.KafkaProducerEnabled {
		boot.AddDependency(&dependency{
			name: "kafka-producer",
			start: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			stop: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	partRepository := partrepo.NewRepository(db, logger)
	referenceRepository := referencerepo.NewRepository(db, logger)
	inventoryRepository := inventoryrepo.NewRepository(db, logger)
	mergeAuditRepository := mergeauditrepo.NewRepository(db, logger)

	groupCache := dupecache.New(redisClient, cfg.CacheTTL, logger)
	grouper := matching.NewGrouper(cfg.NameSimilarityCutoff, logger)
	detection := matching.NewService(partRepository, groupCache, grouper, cfg.DetectionMaxParts, logger)

	planner := merging.NewPlanner(partRepository, referenceRepository, inventoryRepository, cfg.MergeImpactWarnThreshold, logger)

	var emitter merging.Emitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	}

	locker := redis.NewLocker(redisClient, "")
	unitOfWork := merging.NewSQLUnitOfWork(db, logger)
	executor := merging.NewExecutor(
		unitOfWork,
		locker,
		cfg.MergeLockTTL,
		partRepository,
		referenceRepository,
		inventoryRepository,
		mergeAuditRepository,
		emitter,
		groupCache,
		logger,
	)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}

	registrations := []func() error{
		func() error { return ectoinject.RegisterInstance[ectologger.Logger](container, logger) },
		func() error { return ectoinject.RegisterInstance[*config.Config](container, cfg) },
		func() error { return ectoinject.RegisterInstance[*partrepo.Repository](container, partRepository) },
		func() error {
			return ectoinject.RegisterInstance[*mergeauditrepo.Repository](container, mergeAuditRepository)
		},
		func() error { return ectoinject.RegisterInstance[*matching.Service](container, detection) },
		func() error { return ectoinject.RegisterInstance[*merging.Planner](container, planner) },
		func() error { return ectoinject.RegisterInstance[*merging.Executor](container, executor) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			logger.WithError(err).Error("Failed to register dependency")
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(db, redisClient, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	duplicates.Register(api.Group("/duplicates"))
	mergeroute.Register(api.Group("/merge"))
	partroute.Register(api.Group("/parts"))
	mergeauditroute.Register(api.Group("/merges"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			cancel()
		}
	}()

	checker.SetReady(true)

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Dependency shutdown failed")
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Tracer shutdown failed")
		}
	}
}
