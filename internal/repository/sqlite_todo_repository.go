package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tomlord1122/todo-api/internal/domain"
)

// sqliteTodoRepository stores todos through database/sql. It expects a
// handle opened with the modernc.org/sqlite driver.
type sqliteTodoRepository struct {
	db *sql.DB
}

// NewSQLiteTodoRepository creates the todos table if needed and returns a
// repository backed by db.
func NewSQLiteTodoRepository(ctx context.Context, db *sql.DB) (TodoRepository, error) {
	if err := initSQLiteTodoTable(ctx, db); err != nil {
		return nil, err
	}
	return &sqliteTodoRepository{db: db}, nil
}

// AUTOINCREMENT keeps SQLite from handing out the id of a deleted row again.
func initSQLiteTodoTable(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create todos table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_todos_title ON todos(title);
	CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at);`
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create todos indexes: %w", err)
	}
	return nil
}

func (r *sqliteTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	query := `
		INSERT INTO todos (title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		todo.Title,
		todo.Description,
		boolToInt(todo.Completed),
		todo.CreatedAt.UnixMilli(),
		todo.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted todo id: %w", err)
	}
	todo.ID = uint64(id)
	return nil
}

func (r *sqliteTodoRepository) FindByID(ctx context.Context, id uint64) (*domain.Todo, error) {
	query := `
		SELECT id, title, description, completed, created_at, updated_at
		FROM todos
		WHERE id = ?`

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(id)
		}
		return nil, fmt.Errorf("select todo %d: %w", id, err)
	}
	return todo, nil
}

func (r *sqliteTodoRepository) GetAll(ctx context.Context, order domain.SortOrder) ([]domain.Todo, error) {
	query := `
		SELECT id, title, description, completed, created_at, updated_at
		FROM todos
		ORDER BY ` + sqlOrder(order)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, nil
}

func (r *sqliteTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	query := `
		UPDATE todos
		SET title = ?, description = ?, completed = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		todo.Title,
		todo.Description,
		boolToInt(todo.Completed),
		todo.UpdatedAt.UnixMilli(),
		todo.ID,
	)
	if err != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	return requireAffected(result, todo.ID)
}

func (r *sqliteTodoRepository) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return requireAffected(result, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*domain.Todo, error) {
	var (
		todo      domain.Todo
		completed int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Description,
		&completed,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	todo.Completed = completed == 1
	todo.CreatedAt = time.UnixMilli(createdAt).UTC()
	todo.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &todo, nil
}

func requireAffected(result sql.Result, id uint64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for todo %d: %w", id, err)
	}
	if n == 0 {
		return domain.NotFound(id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
