package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryhub/internal/app"
	"libraryhub/internal/config"
	"libraryhub/internal/logging"
	"libraryhub/internal/microservices/http-api/handler"
	"libraryhub/internal/microservices/http-api/middleware"

	"github.com/gin-gonic/gin"
)

const (
	rateLimiterSweepJob = "rate-limiter-sweep"
	shutdownTimeout     = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	err = a.Scheduler.Add(rateLimiterSweepJob, 5*time.Minute, false, func(context.Context) (int, error) {
		return limiter.Sweep(), nil
	})
	if err != nil {
		return err
	}

	router := handler.Router{
		Logger:        logger,
		Tokens:        middleware.NewTokens(cfg.JWTSecret),
		RateLimiter:   limiter,
		Metrics:       a.MetricsHandle,
		Loans:         handler.NewLoanHandler(a.Loans, a.Reservations, logger),
		Reservations:  handler.NewReservationHandler(a.Reservations, logger),
		Fines:         handler.NewFineHandler(a.Fines, logger),
		Books:         handler.NewBookHandler(a.Books, logger),
		Notifications: handler.NewNotificationHandler(a.Notifications, a.Hub, logger),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	a.Scheduler.Start(jobsCtx)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("http_server_starting", "addr", srv.Addr, "env", cfg.GoEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		cancelJobs()
		a.Scheduler.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}

	cancelJobs()
	a.Scheduler.Wait()
	logger.Info("server_stopped_gracefully")
	return nil
}
