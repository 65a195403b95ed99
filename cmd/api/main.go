package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tomlord1122/todo-api/internal/config"
	"github.com/Tomlord1122/todo-api/internal/database"
	"github.com/Tomlord1122/todo-api/internal/logging"
	"github.com/Tomlord1122/todo-api/internal/repository"
	"github.com/Tomlord1122/todo-api/internal/server"
	"github.com/Tomlord1122/todo-api/internal/service"
)

func gracefulShutdown(apiServer *http.Server, dbService database.Service, timeout time.Duration, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	slog.Info("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctxTimeout, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}

	if dbService != nil {
		slog.Info("closing datastore")
		if err := dbService.Close(); err != nil {
			slog.Error("error closing datastore", slog.Any("error", err))
		} else {
			slog.Info("datastore closed")
		}
	}

	slog.Info("server exiting")

	done <- true
}

// openStore connects to the configured datastore and returns its lifecycle
// handle together with a repository bound to it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (database.Service, repository.TodoRepository, error) {
	logger = logger.With("driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := database.NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			logger.Info("running database auto-migration")
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		return pg, repository.NewGormTodoRepository(pg.GetDB()), nil

	case config.DriverSQLite:
		lite, err := database.NewSQLite(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewSQLiteTodoRepository(ctx, lite.DB())
		if err != nil {
			lite.Close()
			return nil, nil, err
		}
		return lite, repo, nil

	case config.DriverMongo:
		m, err := database.NewMongo(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewMongoTodoRepository(ctx, m.Database(), cfg.Collection)
		if err != nil {
			m.Close()
			return nil, nil, err
		}
		return m, repo, nil
	}

	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Init(cfg.Log)

	dbService, todoRepo, err := openStore(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open datastore", slog.Any("error", err))
		os.Exit(1)
	}

	todoService := service.NewTodoService(todoRepo)
	apiServer := server.NewServer(cfg, todoService, dbService)

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, dbService, cfg.ShutdownTimeout, done)

	logger.Info("starting server", slog.String("addr", apiServer.Addr), slog.String("driver", cfg.Database.Driver))
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
		os.Exit(1)
	}

	<-done
	logger.Info("graceful shutdown complete")
}
