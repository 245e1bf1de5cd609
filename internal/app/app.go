package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"detectserver/internal/backend/onnx"
	"detectserver/internal/backend/opencv"
	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/registry"
	"detectserver/internal/repository/sqlite"
	"detectserver/internal/route"
	"detectserver/internal/service"
	"detectserver/internal/service/ai"
	"detectserver/internal/service/storage"
	"detectserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	registry      *registry.Registry
	cache         *ai.ModelCache
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
	handler       http.Handler
}

// NewLoader returns the inference backend selected by cfg.InferenceBackend.
func NewLoader(cfg *config.Config) (ai.Loader, error) {
	switch cfg.InferenceBackend {
	case "", "opencv":
		return opencv.NewLoader(), nil
	case "onnx":
		return onnx.NewLoader(cfg.OnnxRuntimeLibrary), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.InferenceBackend)
	}
}

// InferenceLimits maps the configured detection bounds onto the inference service.
func InferenceLimits(cfg *config.Config) ai.Limits {
	workers := cfg.DetectWorkers
	if workers < 1 {
		workers = 1
	}
	return ai.Limits{
		DetectTimeout: cfg.DetectTimeout,
		MaxPixels:     cfg.MaxImagePixels,
		Workers:       workers,
	}
}

func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	loader, err := NewLoader(cfg)
	if err != nil {
		log.Close()
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}
	runRepo := sqlite.NewRunRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	reg := registry.New(cfg)
	cache := ai.NewModelCache()
	inference := ai.NewInferenceService(reg, loader, cache, InferenceLimits(cfg), log)
	buffer := storage.NewBufferService(cfg, log, runRepo, detectionRepo)
	hub := websocket.NewHubService(log)
	mng := service.NewManager(cfg, reg, inference, buffer, hub, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		registry:      reg,
		cache:         cache,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
		handler:       route.SetupRoutes(mng, cfg, log, runRepo, detectionRepo),
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// flushes pending history.
func (a *App) Run(ctx context.Context) error {
	if downloaded, err := a.registry.EnsureBaseline(ctx); err != nil {
		a.logger.Warning("Baseline model unavailable: %v", err)
	} else if downloaded {
		a.logger.Info("Downloaded baseline model %s", a.registry.Baseline())
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	bufferDone := make(chan struct{})
	go func() {
		a.bufferService.Run(bgCtx)
		close(bufferDone)
	}()
	go a.hubService.Run(bgCtx)

	// Warm the baseline so the first request does not pay for loading.
	go func() {
		if _, err := a.manager.Preload(""); err != nil {
			a.logger.Warning("Could not preload baseline model: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Detection server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Models: %v (backend %s)", a.registry.ListAvailableModels(), a.config.InferenceBackend)
	a.logger.Info("Images: %s, database: %s", a.config.ImageDirectory, a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	stopBackground()
	<-bufferDone
	return err
}

// Close releases loaded models, the database, and log files.
func (a *App) Close() error {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("Error releasing models: %v", err)
	}
	if a.config.InferenceBackend == "onnx" {
		if err := onnx.Shutdown(); err != nil {
			a.logger.Error("Error shutting down onnxruntime: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	return a.logger.Close()
}
