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

	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/api"
	"lawly.io/sow-wizard/internal/auth"
	"lawly.io/sow-wizard/internal/core"
	"lawly.io/sow-wizard/internal/store"
)

func runServer(ctx context.Context) error {
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	sessionService := core.NewSessionService(dbStore, dbStore, logger)
	profileService := core.NewProfileService(dbStore)
	authService := core.NewAuthService(dbStore, auth.NewTokens(cfg.JWTSecret), cfg.SessionTTL, logger)

	opts := api.Options{
		PostLoginRedirect: cfg.PostLoginRedirect,
		CookieSecure:      cfg.CookieSecure,
	}
	if cfg.GoogleEnabled() {
		opts.Provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		logger.Info("Google sign-in disabled; use `server token` to issue tokens")
	}

	apiHandler := api.NewAPIHandler(sessionService, profileService, authService, logger, opts)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting gracefully")
	return nil
}
