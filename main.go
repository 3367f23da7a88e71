package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-tasks-be/internal/api"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/config"
	"github.com/isdelr/ender-tasks-be/internal/logger"
	"github.com/isdelr/ender-tasks-be/internal/services"
	"github.com/isdelr/ender-tasks-be/internal/storage/mongodb"
	"github.com/isdelr/ender-tasks-be/internal/storage/sqlite"
	"github.com/rs/zerolog/log"
)

// store is what every backend provides.
type store interface {
	services.UserStore
	services.TodoStore
	api.Pinger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env, cfg.LogLevel)

	// Set up the credential store
	db, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialize store")
	}
	defer closeStore()

	// Set up services
	tokens := auth.NewTokenManager(cfg.Token.AccessSecret, cfg.Token.RefreshSecret, cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
	userService := services.NewUserService(db, tokens, cfg.BcryptCost)
	todoService := services.NewTodoService(db)

	// Set up router
	router := api.NewRouter(api.Options{
		AllowedOrigins: cfg.CORSOrigin,
		BodyLimit:      cfg.BodyLimit,
		SecureCookies:  cfg.Cookie.Secure,
		AccessTTL:      cfg.Token.AccessTTL,
		RefreshTTL:     cfg.Token.RefreshTTL,
	}, userService, todoService, db)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("store", cfg.Storage.Driver).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}

func openStore(cfg config.StorageConfig) (store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close sqlite store")
			}
		}, nil

	default:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		defer cancel()

		s, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to disconnect from mongodb")
			}
		}, nil
	}
}
