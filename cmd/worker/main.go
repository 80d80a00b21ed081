package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/contact-app/followup/internal/app"
	"github.com/contact-app/followup/internal/config"
)

func main() {
	log.Println("Starting ContAct followup worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialise: %v", err)
	}
	defer a.Close()

	if err := a.DispatchWorker.Start(); err != nil {
		log.Fatalf("Failed to start dispatch worker: %v", err)
	}
	log.Printf("Dispatch worker started (mode=%s, every %s)", cfg.Followup.DispatchMode, cfg.Followup.PollInterval())

	if a.Consumer != nil {
		a.Consumer.Start(ctx)
		log.Printf("Dispatch queue consumer started")
	}

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		a.CleanupWorker.Start(ctx)
	}()
	log.Printf("Cleanup worker started (retention=%dd, every %s)", cfg.Followup.RetentionDays, cfg.Followup.CleanupInterval())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	a.DispatchWorker.Stop()
	if a.Consumer != nil {
		a.Consumer.Stop()
	}
	<-cleanupDone
	log.Println("Worker stopped")
}
