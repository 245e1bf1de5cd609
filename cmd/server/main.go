package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"detectserver/internal/app"
	"detectserver/internal/config"
)

func main() {
	cfg := config.Load()

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Printf("Server stopped with error: %v", err)
		application.Close()
		os.Exit(1)
	}
}
