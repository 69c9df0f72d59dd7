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

	"cleanbuddy-dispatch/api"
	"cleanbuddy-dispatch/res/config"
	"cleanbuddy-dispatch/res/logging"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/res/store/postgresql"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file in development
	// Try multiple locations: current dir, cleanbuddy-dispatch/, parent dir
	err := godotenv.Load()
	if err != nil {
		err = godotenv.Load("cleanbuddy-dispatch/.env")
	}
	if err != nil {
		err = godotenv.Load("../.env")
	}
	envFileMissing := err != nil

	cfg, err := api.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, flush := logging.New(cfg.IsProduction(), "cmd")
	defer flush()
	if envFileMissing {
		logger.Printf("Note: .env file not found, using system environment variables")
	}

	// Bootstrap global admin if GLOBAL_ADMIN_EMAIL is set
	if globalAdminEmail := os.Getenv("GLOBAL_ADMIN_EMAIL"); globalAdminEmail != "" && cfg.StoreDriver == config.StoreDriverPostgres {
		if err := bootstrapGlobalAdmin(cfg, globalAdminEmail); err != nil {
			logger.Printf("Warning: Failed to bootstrap global admin: %v", err)
		} else {
			logger.Printf("Successfully checked/updated global admin: %s", globalAdminEmail)
		}
	}

	runner, err := api.AutoConfirmRunner()
	if err != nil {
		logger.Fatalf("Failed to create auto-confirm runner: %v", err)
	}
	runner.Start()
	logger.Printf("Auto-confirm scheduled (%s)", cfg.AutoConfirmSchedule)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           http.HandlerFunc(api.Handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Starting server on :%s (environment: %s)", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Printf("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("Error shutting down server: %v", err)
	}
	select {
	case <-runner.Stop().Done():
	case <-ctx.Done():
		logger.Printf("Auto-confirm run still in progress at shutdown")
	}
	api.Shutdown()
}

func bootstrapGlobalAdmin(cfg *config.Config, email string) error {
	storeInstance, err := postgresql.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx := context.Background()

	user, err := storeInstance.Users().GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user with email %s: %w", email, err)
	}

	if user.Role == store.UserRoleGlobalAdmin {
		return nil
	}

	if err := storeInstance.Users().UpdateRole(ctx, user.ID, store.UserRoleGlobalAdmin); err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return nil
}
