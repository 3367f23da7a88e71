package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-tasks-be/internal/apperr"
	"github.com/isdelr/ender-tasks-be/internal/models"
	"github.com/isdelr/ender-tasks-be/internal/storage"
)

// TodoStore is the persistence for todos. Every lookup is keyed by owner.
type TodoStore interface {
	CreateTodo(ctx context.Context, todo models.Todo) error
	TodosByUser(ctx context.Context, userID string) ([]models.Todo, error)
	TodoByID(ctx context.Context, userID, id string) (models.Todo, error)
	UpdateTodoStatus(ctx context.Context, userID, id, status string) (models.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) error
}

// TodoServiceProvider defines the interface for todo services.
type TodoServiceProvider interface {
	CreateTodo(ctx context.Context, userID, title, description string) (models.Todo, error)
	GetTodos(ctx context.Context, userID string) ([]models.Todo, error)
	GetTodoByID(ctx context.Context, userID, id string) (models.Todo, error)
	UpdateTodoStatus(ctx context.Context, userID, id, status string) (models.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) error
}

// TodoService provides business logic for todo management.
type TodoService struct {
	store TodoStore
}

// NewTodoService creates a new TodoService.
func NewTodoService(store TodoStore) *TodoService {
	return &TodoService{store: store}
}

// CreateTodo creates a pending todo owned by userID.
func (s *TodoService) CreateTodo(ctx context.Context, userID, title, description string) (models.Todo, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return models.Todo{}, apperr.Validation("Title and description are required")
	}

	// v7 ids sort by creation time, which breaks ties between todos created
	// within the same millisecond.
	id, err := uuid.NewV7()
	if err != nil {
		return models.Todo{}, apperr.Internal("Failed to create todo", err)
	}

	now := time.Now().UTC()
	todo := models.Todo{
		ID:          id.String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      models.TodoPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTodo(ctx, todo); err != nil {
		return models.Todo{}, apperr.Internal("Failed to create todo", err)
	}
	return todo, nil
}

// GetTodos returns the caller's todos in creation order. An empty list is
// reported as not found.
func (s *TodoService) GetTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	todos, err := s.store.TodosByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve todos", err)
	}
	if len(todos) == 0 {
		return nil, apperr.NotFound("No todos found")
	}
	return todos, nil
}

func (s *TodoService) GetTodoByID(ctx context.Context, userID, id string) (models.Todo, error) {
	todo, err := s.store.TodoByID(ctx, userID, id)
	if err != nil {
		return models.Todo{}, todoError(err, "Failed to retrieve todo")
	}
	return todo, nil
}

// UpdateTodoStatus validates status before touching the store.
func (s *TodoService) UpdateTodoStatus(ctx context.Context, userID, id, status string) (models.Todo, error) {
	if !models.ValidTodoStatus(status) {
		return models.Todo{}, apperr.Validation("Invalid status value")
	}

	todo, err := s.store.UpdateTodoStatus(ctx, userID, id, status)
	if err != nil {
		return models.Todo{}, todoError(err, "Failed to update todo")
	}
	return todo, nil
}

func (s *TodoService) DeleteTodo(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTodo(ctx, userID, id); err != nil {
		return todoError(err, "Failed to delete todo")
	}
	return nil
}

func todoError(err error, msg string) error {
	if errors.Is(err, storage.ErrTodoNotFound) {
		return apperr.NotFound("Todo not found")
	}
	return apperr.Internal(msg, err)
}
