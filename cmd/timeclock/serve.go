package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/timeclock/internal/application"
	httptransport "github.com/example/timeclock/internal/http"
	"github.com/example/timeclock/internal/persistence/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the time tracking API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, pool, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	defaultLocation, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("load default timezone: %w", err)
	}

	userRepo := sqlite.NewUserRepository(pool)
	entryRepo := sqlite.NewTimeEntryRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)
	auditRepo := sqlite.NewAuditLogRepository(pool)

	users := newUserDirectoryAdapter(userRepo)
	entries := newEntryStoreAdapter(entryRepo)
	sessions := newSessionRepositoryAdapter(sessionRepo)
	credentials := newCredentialStoreAdapter(userRepo)
	audit := newAuditSinkAdapter(auditRepo)

	resolver := application.NewDayWindowResolver(defaultLocation)
	now := time.Now

	authService := application.NewAuthService(credentials, sessions, nil, newTokenGenerator(), now, cfg.SessionTTL, logger)
	userService := application.NewUserService(users, newIDGenerator(), now, logger)
	entryService := application.NewEntryService(entries, audit, now, logger)
	breakService := application.NewBreakService(users, entries, audit, resolver, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, logger),
		Entries:    httptransport.NewEntryHandler(entryService, logger),
		Users:      httptransport.NewUserHandler(userService, logger),
		AutoBreaks: httptransport.NewAutoBreakHandler(breakService, authService, cfg.CronSecret, logger),
		Sessions:   authService,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("timeclock API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
