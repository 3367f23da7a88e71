package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-tasks-be/internal/api/response"
	"github.com/isdelr/ender-tasks-be/internal/services"
)

// TodoHandler handles HTTP requests for the caller's todos.
type TodoHandler struct {
	service services.TodoServiceProvider
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(service services.TodoServiceProvider) *TodoHandler {
	return &TodoHandler{service: service}
}

type createTodoPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type statusPayload struct {
	Status string `json:"status"`
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	handle(h.create)(w, r)
}

func (h *TodoHandler) create(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var payload createTodoPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	todo, err := h.service.CreateTodo(r.Context(), user.ID, payload.Title, payload.Description)
	if err != nil {
		return err
	}
	response.JSON(w, http.StatusCreated, todo, "Todo created successfully")
	return nil
}

func (h *TodoHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	handle(h.getAll)(w, r)
}

func (h *TodoHandler) getAll(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	todos, err := h.service.GetTodos(r.Context(), user.ID)
	if err != nil {
		return err
	}
	response.JSON(w, http.StatusOK, todos, "todos fetched successfully")
	return nil
}

func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle(h.get)(w, r)
}

func (h *TodoHandler) get(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	todo, err := h.service.GetTodoByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	response.JSON(w, http.StatusOK, todo, "Todo fetched successfully")
	return nil
}

// UpdateStatus only changes the status; other fields in the body are ignored.
func (h *TodoHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	handle(h.updateStatus)(w, r)
}

func (h *TodoHandler) updateStatus(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var payload statusPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	todo, err := h.service.UpdateTodoStatus(r.Context(), user.ID, chi.URLParam(r, "id"), payload.Status)
	if err != nil {
		return err
	}
	response.JSON(w, http.StatusOK, todo, "Todo status updated successfully")
	return nil
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	handle(h.remove)(w, r)
}

func (h *TodoHandler) remove(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := h.service.DeleteTodo(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		return err
	}
	response.JSON(w, http.StatusOK, nil, "Todo deleted successfully")
	return nil
}
