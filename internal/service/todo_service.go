package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Tomlord1122/todo-api/internal/domain"
	"github.com/Tomlord1122/todo-api/internal/logging"
	"github.com/Tomlord1122/todo-api/internal/repository"
)

// CreateTodoRequest holds the data needed to create a new todo.
// Completed defaults to false when omitted.
type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// UpdateTodoRequest holds the data for updating an existing todo.
// Using pointers allows distinguishing between a field being omitted
// vs. being set to its zero value (e.g., setting Completed to false).
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TodoService defines the operations for managing todos.
//
// Errors are one of: a *domain.ValidationError for bad input, an error
// wrapping domain.ErrNotFound for an absent id, or a *domain.InternalError
// when the datastore fails.
type TodoService interface {
	CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error)
	GetTodoByID(ctx context.Context, id uint64) (*TodoResponse, error)
	GetAllTodos(ctx context.Context, order domain.SortOrder) ([]TodoResponse, error)
	UpdateTodo(ctx context.Context, id uint64, req UpdateTodoRequest) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, id uint64) error
}

// todoService implements the TodoService interface.
// It depends on a TodoRepository to interact with the data layer.
type todoService struct {
	repo repository.TodoRepository
	now  func() time.Time
}

// NewTodoService creates a new instance of todoService.
func NewTodoService(repo repository.TodoRepository) TodoService {
	return &todoService{
		repo: repo,
		now:  domain.Now,
	}
}

func (s *todoService) CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	newTodo := &domain.Todo{
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		newTodo.Description = *req.Description
	}
	if req.Completed != nil {
		newTodo.Completed = *req.Completed
	}

	if err := s.repo.Create(ctx, newTodo); err != nil {
		return nil, s.internal(ctx, "create todo", err)
	}

	logging.FromContext(ctx).Info("todo created", slog.Uint64("id", newTodo.ID))
	return toResponse(newTodo), nil
}

func (s *todoService) GetTodoByID(ctx context.Context, id uint64) (*TodoResponse, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, "retrieve todo", err)
	}
	return toResponse(todo), nil
}

func (s *todoService) GetAllTodos(ctx context.Context, order domain.SortOrder) ([]TodoResponse, error) {
	if !order.Valid() {
		return nil, &domain.ValidationError{
			Message: "Invalid query parameter",
			Fields: []domain.FieldError{{
				Field:   "sort_by",
				Message: "sort_by must be one of: date, completed",
			}},
		}
	}

	todos, err := s.repo.GetAll(ctx, order)
	if err != nil {
		return nil, s.internal(ctx, "retrieve todos", err)
	}

	responses := make([]TodoResponse, 0, len(todos))
	for i := range todos {
		responses = append(responses, *toResponse(&todos[i]))
	}
	return responses, nil
}

// UpdateTodo merges the fields present in req into the stored record.
// Absent fields keep their values; the id never changes.
func (s *todoService) UpdateTodo(ctx context.Context, id uint64, req UpdateTodoRequest) (*TodoResponse, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, "retrieve todo for update", err)
	}

	changes := domain.Changes{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if !changes.Apply(existing) {
		logging.FromContext(ctx).Debug("no changes detected", slog.Uint64("id", id))
		return toResponse(existing), nil
	}

	existing.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, s.classify(ctx, "update todo", err)
	}

	logging.FromContext(ctx).Info("todo updated", slog.Uint64("id", id))
	return toResponse(existing), nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id uint64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.classify(ctx, "delete todo", err)
	}
	logging.FromContext(ctx).Info("todo deleted", slog.Uint64("id", id))
	return nil
}

// classify passes not-found errors through and turns everything else into
// an InternalError.
func (s *todoService) classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.internal(ctx, op, err)
}

func (s *todoService) internal(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx).Error("repository call failed",
		slog.String("op", op),
		slog.Any("error", err))
	return &domain.InternalError{Op: op, Err: err}
}

func toResponse(todo *domain.Todo) *TodoResponse {
	return &TodoResponse{
		ID:          todo.ID,
		Title:       todo.Title,
		Description: todo.Description,
		Completed:   todo.Completed,
		CreatedAt:   todo.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   todo.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
