package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-api/internal/domain"
)

// TodoRepository defines the interface for todo data operations.
// Implementations return errors wrapping domain.ErrNotFound when an id does
// not reference a present record; every other error is a datastore failure.
type TodoRepository interface {
	// Create stores todo and fills in its ID.
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint64) (*domain.Todo, error)
	GetAll(ctx context.Context, order domain.SortOrder) ([]domain.Todo, error)
	// Update overwrites the mutable fields of the record with todo.ID. It
	// never inserts.
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint64) error
}

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id uint64) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.WithContext(ctx).First(&todo, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound(id)
		}
		return nil, fmt.Errorf("select todo %d: %w", id, err)
	}
	return &todo, nil
}

func (r *gormTodoRepository) GetAll(ctx context.Context, order domain.SortOrder) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	err := r.db.WithContext(ctx).Order(sqlOrder(order)).Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	return todos, nil
}

// Update uses Updates instead of Save: Save falls back to an INSERT when no
// row matches, which would resurrect a concurrently deleted record.
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ?", todo.ID).
		Updates(map[string]any{
			"title":       todo.Title,
			"description": todo.Description,
			"completed":   todo.Completed,
			"updated_at":  todo.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(todo.ID)
	}
	return nil
}

// Delete removes the row permanently. Todo has no DeletedAt column, so GORM
// does not soft delete.
func (r *gormTodoRepository) Delete(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&domain.Todo{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete todo %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(id)
	}
	return nil
}

// sqlOrder is the ORDER BY clause shared by the SQL backends.
func sqlOrder(order domain.SortOrder) string {
	switch order {
	case domain.SortByDate:
		return "created_at DESC, id DESC"
	case domain.SortByCompleted:
		return "completed DESC, id ASC"
	default:
		return "id ASC"
	}
}
