package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Tomlord1122/todo-api/internal/config"
)

// serverSelectionTimeout caps how long the driver looks for a usable server.
const serverSelectionTimeout = 5 * time.Second

// Mongo is a connected client plus the database todos live in.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongo connects to cfg.URI and pings the primary before returning.
func NewMongo(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetMaxPoolSize(uint64(max(cfg.MaxOpenConns, 0)))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("mongo connection successful", slog.String("database", cfg.Name))

	return &Mongo{client: client, db: client.Database(cfg.Name), logger: log}, nil
}

func (m *Mongo) Database() *mongo.Database {
	return m.db
}

func (m *Mongo) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := map[string]string{"database": m.db.Name()}
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		m.logger.Warn("database health check failed", slog.Any("error", err))
		return stats
	}
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	return stats
}

func (m *Mongo) Close() error {
	m.logger.Info("disconnecting mongo client", slog.String("database", m.db.Name()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
