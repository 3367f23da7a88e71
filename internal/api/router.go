package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-tasks-be/internal/api/handlers"
	"github.com/isdelr/ender-tasks-be/internal/api/response"
	"github.com/isdelr/ender-tasks-be/internal/apperr"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/services"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Options carries the HTTP settings taken from configuration.
type Options struct {
	AllowedOrigins []string
	BodyLimit      int64
	SecureCookies  bool
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
}

// Pinger reports whether the credential store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates and configures a new Chi router.
func NewRouter(opts Options, userService services.UserServiceProvider, todoService services.TodoServiceProvider, store Pinger) *chi.Mux {
	r := chi.NewRouter()

	// Interceptors run in the order they are registered; any of them may
	// short-circuit the request.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(opts.BodyLimit))

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.NotFound)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, opts.SecureCookies, opts.AccessTTL, opts.RefreshTTL)
	todoHandler := handlers.NewTodoHandler(todoService)
	requireAuth := auth.Middleware(userService)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			response.Error(w, r, apperr.Internal("Store unavailable", err))
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
	})

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/refresh-token", userHandler.RefreshToken)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", userHandler.Logout)
				r.Post("/change-password", userHandler.ChangePassword)
				r.Get("/me", userHandler.GetMe)
				r.Patch("/me", userHandler.UpdateMe)
			})
		})

		r.Route("/todos/tasks", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", todoHandler.GetAll)
				r.Post("/", todoHandler.Create)
				r.Get("/{id}", todoHandler.Get)
				r.Put("/{id}", todoHandler.UpdateStatus)
				r.Delete("/{id}", todoHandler.Delete)
			})
		})
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request handled")
}
