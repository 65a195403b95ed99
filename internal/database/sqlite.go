package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Tomlord1122/todo-api/internal/config"
)

// SQLite is an embedded database file opened with modernc.org/sqlite.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLite opens (creating if needed) the database file at cfg.Path.
// SQLite allows a single writer, so the pool is limited to one connection
// and lock waits are bounded by busy_timeout.
func NewSQLite(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{db: db, path: cfg.Path, logger: log}, nil
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Health(ctx context.Context) map[string]string {
	stats := sqlHealth(ctx, s.db, s.logger)
	stats["path"] = s.path
	return stats
}

func (s *SQLite) Close() error {
	s.logger.Info("closing database", slog.String("path", s.path))
	return s.db.Close()
}
