package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"detectserver/internal/app"
	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/registry"
	"detectserver/internal/service/ai"

	"github.com/disintegration/imaging"
)

func main() {
	cfg := config.Load()

	modelID := flag.String("model", cfg.BaselineModel, "Model identifier inside MODEL_DIR")
	imagePath := flag.String("image", "", "Image to run detection on (jpg or png)")
	confidence := flag.Float64("conf", cfg.DefaultConfidence, "Confidence threshold in [0, 1]")
	outPath := flag.String("out", "annotated.png", "Where to write the annotated image")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logs, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logs.Close()

	reg := registry.New(cfg)
	if downloaded, err := reg.EnsureBaseline(context.Background()); err != nil {
		logs.Warning("Baseline model unavailable: %v", err)
	} else if downloaded {
		logs.Info("Downloaded baseline model %s", reg.Baseline())
	}

	if !reg.Validate(*modelID) {
		log.Fatalf("Model %s is not available; choose one of %v", *modelID, reg.ListAvailableModels())
	}

	loader, err := app.NewLoader(cfg)
	if err != nil {
		log.Fatalf("Failed to select backend: %v", err)
	}

	cache := ai.NewModelCache()
	defer cache.Close()
	inference := ai.NewInferenceService(reg, loader, cache, app.InferenceLimits(cfg), logs)

	handle, err := inference.GetOrLoadModel(*modelID)
	if err != nil {
		log.Fatalf("Error loading model: %v", err)
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}

	result, err := inference.Detect(context.Background(), handle, ai.DetectionRequest{Image: data, ConfidenceThreshold: *confidence})
	if err != nil {
		log.Fatalf("Error during detection: %v", err)
	}

	if err := imaging.Save(result.Annotated, *outPath); err != nil {
		log.Fatalf("Failed to save annotated image: %v", err)
	}

	classes := result.ClassSet()
	sort.Strings(classes)

	fmt.Printf("Detected %d object(s) with %s at confidence %.2f\n", len(result.Detections), handle.ID, result.Threshold)
	if len(classes) > 0 {
		fmt.Printf("Classes: %s\n", strings.Join(classes, ", "))
	}
	for _, d := range result.Detections {
		fmt.Printf("  %-16s %.2f  [%d %d %d %d]\n", d.ClassName, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}
	fmt.Printf("Annotated image written to %s\n", *outPath)
}
