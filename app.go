package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

// App is the dev service instance started by `bookmate serve`.
type App struct {
	logger      *zap.Logger
	config      *Config
	server      *http.Server
	redisClient *redis.Client
	consumer    Consumer
	cleanups    []func()
}

// NewApp wires the dev service: storage backend per configuration,
// optional redis to bolt write-behind mirror, handlers, middleware
// chains, routing and the http server.
func NewApp(logger *zap.Logger, config *Config) (AppProvider, error) {
	app := &App{logger: logger, config: config}

	var storage LibraryStorage
	switch config.Storage.Backend {
	case "redis":
		redisClient, err := GetRedisClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		app.redisClient = redisClient
		storage = NewRedisLibraryStorage(logger, redisClient)

		if config.Storage.MirrorToBolt {
			boltClient, err := GetBoltDBClient(config)
			if err != nil {
				return nil, fmt.Errorf("failed to open bolt mirror: %s", err)
			}
			mirror := NewBoltLibraryStorage(logger, &config.BoltDB, boltClient)
			queue := NewRedisQueue(redisClient)
			storage = NewQueueingStorage(logger, storage, queue)
			app.consumer = NewBoltMirrorConsumer(logger, queue, mirror)
			app.cleanups = append(app.cleanups, func() {
				if cerr := mirror.Close(); cerr != nil {
					logger.Error("failed to close bolt mirror", zap.Error(cerr))
				}
			})
		}
	case "bolt":
		boltClient, err := GetBoltDBClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt database: %s", err)
		}
		storage = NewBoltLibraryStorage(logger, &config.BoltDB, boltClient)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
	app.cleanups = append(app.cleanups, func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", zap.Error(cerr))
		}
	})

	clock := NewClock(config.IsProduction)
	apiService := NewAPIHandler(
		logger,
		config,
		clock,
		NewIDsHandler(),
		&Statistics{version: config.GitTag, started: clock.Now()},
		storage,
	)

	// Build the stacks of middlewares.
	public := Middlewares{
		apiService.PanicRecoveryMiddleware,
		apiService.RequestsCounterMiddleware,
		apiService.RequestIDMiddleware,
		CORSMiddleware,
		apiService.CoreMiddleware,
	}
	ops := Middlewares{
		apiService.PanicRecoveryMiddleware,
		apiService.RequestIDMiddleware,
		apiService.CoreMiddleware,
	}

	router := apiService.SetupRoutes(httprouter.New(), &MiddlewareMap{public: &public, ops: &ops})

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}
	return app, nil
}

// Run starts the api web server, the mirror consumer when configured,
// and a goroutine which is responsible to stop them.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))
	if app.consumer != nil {
		g.Go(func() error {
			return app.consumer.Consume(gCtx, CreateQueue, UpdateQueue, DeleteQueue, BorrowQueue)
		})
	}

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("host", app.config.Server.Host),
		zap.String("port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. Its returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("host", app.config.Server.Host),
			zap.String("port", app.config.Server.Port),
			zap.String("backend", app.config.Storage.Backend),
		)
		err := app.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			app.logger.Info("api server graceful shutdown succeeded")
		case context.DeadlineExceeded:
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}
