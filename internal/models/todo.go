package models

import "time"

const (
	TodoPending    = "pending"
	TodoInProgress = "in-progress"
	TodoCompleted  = "completed"
)

// Todo is a task owned by exactly one user.
type Todo struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidTodoStatus reports whether s is one of the accepted todo states.
func ValidTodoStatus(s string) bool {
	switch s {
	case TodoPending, TodoInProgress, TodoCompleted:
		return true
	}
	return false
}
