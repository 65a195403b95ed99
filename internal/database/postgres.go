package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-api/internal/config"
	"github.com/Tomlord1122/todo-api/internal/domain"
	"github.com/Tomlord1122/todo-api/internal/logging"
)

// Postgres is a GORM handle over a pgx connection pool.
type Postgres struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	name   string
	logger *slog.Logger
}

// NewPostgres opens the pool through the pgx stdlib driver, hands it to GORM
// and checks that the server answers.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Postgres, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	configurePool(sqlDB, cfg)

	gormLogger := logger.New(
		logging.StdLogger(log, slog.LevelInfo),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(ctx, log),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{db: db, sqlDB: sqlDB, name: cfg.Name, logger: log}, nil
}

func (p *Postgres) GetDB() *gorm.DB {
	return p.db
}

// Migrate creates or alters the todos table to match domain.Todo.
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&domain.Todo{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Health(ctx context.Context) map[string]string {
	return sqlHealth(ctx, p.sqlDB, p.logger)
}

func (p *Postgres) Close() error {
	p.logger.Info("closing connection pool", slog.String("database", p.name))
	return p.sqlDB.Close()
}

// gormLogLevel echoes SQL only when debug logging is on.
func gormLogLevel(ctx context.Context, log *slog.Logger) logger.LogLevel {
	if log.Enabled(ctx, slog.LevelDebug) {
		return logger.Info
	}
	return logger.Warn
}
