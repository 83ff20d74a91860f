// Command taskd serves the task board HTTP API.
//
// @title                       Taskboard API
// @version                     1.0
// @description                 Task tracking with assignments, comments and role based access.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/taskboard/task-system/internal/api"
	"github.com/taskboard/task-system/internal/core/ports"
	"github.com/taskboard/task-system/internal/core/service"
	mongodb "github.com/taskboard/task-system/internal/infrastructure/db/mongo"
	redisdb "github.com/taskboard/task-system/internal/infrastructure/db/redis"
	"github.com/taskboard/task-system/internal/infrastructure/db/sqlite"
	"github.com/taskboard/task-system/internal/infrastructure/http/handlers"
	"github.com/taskboard/task-system/internal/pkg/config"
	"github.com/taskboard/task-system/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		storage     string
		port        string
	)
	flags := pflag.NewFlagSet("taskd", pflag.ContinueOnError)
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	flags.StringVar(&storage, "storage", "", "storage driver (sqlite or mongo), overrides STORAGE_DRIVER")
	flags.StringVar(&port, "port", "", "listen port, overrides PORT")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println(version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if storage != "" {
		cfg.StorageDriver = storage
	}
	if port != "" {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "taskd",
	})

	health := map[string]handlers.Pinger{}

	store, closeStore, err := openStore(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeStore()

	var idempotency service.IdempotencyStore
	if cfg.Redis.Enabled {
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		idem := redisdb.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)
		idempotency = idem
		health["redis"] = idem
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotent task creation enabled")
	}

	authService := service.NewAuthService(store.Users(), cfg.JWTSecret, cfg.TokenTTL)
	taskService := service.NewTaskService(store, idempotency, logger.Component("tasks"))
	commentService := service.NewCommentService(store, logger.Component("comments"))

	if cfg.Admin.Username != "" {
		created, err := authService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.Info().Str("username", cfg.Admin.Username).Msg("bootstrap admin created")
		}
	}

	e := api.NewRouter(api.Dependencies{
		Log:            log,
		JWTSecret:      cfg.JWTSecret,
		AuthService:    authService,
		TaskService:    taskService,
		CommentService: commentService,
		Health:         health,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Str("version", version).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// pingableStore is a ports.Store the readiness probe can check.
type pingableStore interface {
	ports.Store
	Ping(ctx context.Context) error
}

// openStore connects the configured backend and registers it with the
// readiness probe.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, health map[string]handlers.Pinger) (pingableStore, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		store := mongodb.NewStore(db)
		health["mongo"] = store
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo storage")
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		db, err := sqlite.Connect(ctx, sqlite.Config{Path: cfg.SQLite.Path})
		if err != nil {
			return nil, nil, err
		}
		store := sqlite.NewStore(db)
		health["sqlite"] = store
		log.Info().Str("path", cfg.SQLite.Path).Msg("using sqlite storage")
		return store, func() { _ = db.Close() }, nil
	}
}
