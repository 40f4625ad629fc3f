package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"drivekr-wallet-backend/internal/app"
	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/jobs"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/scheduler"
	"drivekr-wallet-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'retry-notifications', 'remind-pending', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting DriveKR Cronjob Runner...", "log_level", cfg.Log.Level)

	infra, err := app.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", "error", err)
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer infra.Close()

	dispatcher := service.NewNotificationDispatcher(infra.Store, app.Channels(cfg), nil, service.DispatcherConfig{
		AdminPhone:   cfg.Notification.AdminPhone,
		AdminEmail:   cfg.Notification.AdminEmail,
		StoreTimeout: cfg.StoreTimeout(),
	})

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(infra.Store, dispatcher, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			infra.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once. It reports false for an unknown job name.
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "retry-notifications":
		jobRunner.RetryFailedNotifications()
	case "remind-pending":
		jobRunner.RemindPendingTransactions()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - retry-notifications\n")
		fmt.Printf("  - remind-pending\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
