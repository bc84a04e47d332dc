package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/taskcal/internal/config"
	"github.com/cyp0633/taskcal/server/handlers"
	"github.com/cyp0633/taskcal/server/materialize"
	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/cyp0633/taskcal/server/recurrence/rediscache"
	"github.com/cyp0633/taskcal/server/storage"
	"github.com/cyp0633/taskcal/server/storage/memory"
	"github.com/cyp0633/taskcal/server/storage/mongostore"
	"github.com/cyp0633/taskcal/server/storage/pgstore"
)

const (
	// Server configuration
	apiPrefix       = "/api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "taskcal.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, events, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	m := materialize.New(events,
		materialize.WithEngine(engine),
		materialize.WithLogger(logger))
	router := handlers.NewRouter(tasks, events, m, apiPrefix, logger)

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", router)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting task calendar server",
			"addr", cfg.Listen,
			"endpoint", "http://"+cfg.Listen+apiPrefix+"/tasks",
			"storage", cfg.Storage.Backend,
			"cache", cfg.Cache.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores builds the task and event stores for the configured backend.
// The mongo backend keeps tasks in memory.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.TaskStore, storage.EventStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := pgstore.Connect(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("connected to PostgreSQL")
		return store, store, store.Close, nil

	case config.BackendMongo:
		events, err := mongostore.Connect(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("connected to MongoDB", "database", cfg.Storage.MongoDatabase)
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := events.Close(closeCtx); err != nil {
				logger.Error("failed to disconnect from MongoDB", "error", err)
			}
		}
		return memory.New(), events, closeFn, nil

	default:
		store := memory.New()
		return store, store, func() {}, nil
	}
}

// newEngine builds the expansion engine with the configured cache.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*recurrence.Engine, error) {
	engineConfig := cfg.EngineConfig()
	opts := []recurrence.EngineOption{recurrence.WithLogger(logger)}

	if cfg.Cache.Backend == config.CacheRedis {
		cache, err := rediscache.Dial(ctx, cfg.Cache.RedisURL, rediscache.Config{
			Prefix: rediscache.HorizonPrefix(engineConfig),
			TTL:    cfg.Cache.TTL,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using Redis expansion cache")
		opts = append(opts, recurrence.WithCache(cache))
	}

	return recurrence.NewEngineWithConfig(engineConfig, opts...), nil
}
