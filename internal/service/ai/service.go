package ai

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"detectserver/internal/logger"

	"golang.org/x/sync/semaphore"
)

// PathResolver maps a model identifier to an artifact path.
type PathResolver interface {
	Resolve(id string) (string, error)
}

// Limits bound the work a single detection may cause. Zero values disable
// the corresponding limit.
type Limits struct {
	DetectTimeout time.Duration
	MaxPixels     int
	Workers       int // Model calls allowed in flight at once
}

// InferenceService loads models on demand, caches them by identifier, and runs
// detection requests against them.
type InferenceService struct {
	resolver PathResolver
	loader   Loader
	cache    *ModelCache
	limits   Limits
	slots    *semaphore.Weighted
	logger   *logger.Logger
}

// NewInferenceService wires a service around an explicitly owned cache.
func NewInferenceService(resolver PathResolver, loader Loader, cache *ModelCache, limits Limits, logger *logger.Logger) *InferenceService {
	s := &InferenceService{
		resolver: resolver,
		loader:   loader,
		cache:    cache,
		limits:   limits,
		logger:   logger,
	}
	if limits.Workers > 0 {
		s.slots = semaphore.NewWeighted(int64(limits.Workers))
	}
	return s
}

// Cache exposes the service's model cache.
func (s *InferenceService) Cache() *ModelCache {
	return s.cache
}

// GetOrLoadModel returns the cached handle for id, loading it on first use.
func (s *InferenceService) GetOrLoadModel(id string) (*ModelHandle, error) {
	return s.cache.GetOrLoad(id, func() (*ModelHandle, error) {
		path, err := s.resolver.Resolve(id)
		if err != nil {
			return nil, &ModelLoadError{ModelID: id, Cause: err}
		}

		start := time.Now()
		model, err := s.loader.Load(path)
		if err != nil {
			s.logger.Warning("Could not load model %s: %v", id, err)
			return nil, &ModelLoadError{ModelID: id, Cause: err}
		}

		names := make(map[int]string)
		for k, v := range model.ClassNames() {
			names[k] = v
		}

		s.logger.Info("Model %s loaded from %s in %v (%d classes)", id, path, time.Since(start), len(names))
		return &ModelHandle{
			ID:         id,
			Path:       path,
			ClassNames: names,
			LoadedAt:   time.Now(),
			model:      model,
		}, nil
	})
}

type inferOutcome struct {
	raw []RawDetection
	err error
}

// Detect runs handle's model on req.Image and keeps detections whose confidence
// is at least req.ConfidenceThreshold. On failure no partial result is returned.
func (s *InferenceService) Detect(ctx context.Context, handle *ModelHandle, req DetectionRequest) (*DetectionResult, error) {
	if handle == nil || handle.model == nil {
		return nil, &DetectionError{Message: "model not loaded"}
	}

	threshold := req.ConfidenceThreshold
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, &DetectionError{Message: fmt.Sprintf("invalid threshold %v", threshold), Cause: ErrInvalidThreshold}
	}

	img, _, err := DecodeImage(req.Image, s.limits.MaxPixels)
	if err != nil {
		return nil, &DetectionError{Message: "failed to decode image", Cause: err}
	}

	if s.limits.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.DetectTimeout)
		defer cancel()
	}

	start := time.Now()
	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			s.logger.Warning("No detection slot for %s after %v: %v", handle.ID, time.Since(start), err)
			return nil, &DetectionError{Message: "waiting for a detection slot", Cause: fmt.Errorf("%w: %v", ErrInferenceTimeout, err)}
		}
	}

	// The slot is held until the model returns, even if the caller gives up.
	done := make(chan inferOutcome, 1)
	go func() {
		if s.slots != nil {
			defer s.slots.Release(1)
		}
		defer func() {
			if r := recover(); r != nil {
				done <- inferOutcome{err: fmt.Errorf("inference panic: %v", r)}
			}
		}()
		raw, err := handle.model.Infer(img, threshold)
		done <- inferOutcome{raw: raw, err: err}
	}()

	var outcome inferOutcome
	select {
	case <-ctx.Done():
		s.logger.Warning("Detection on %s abandoned after %v: %v", handle.ID, time.Since(start), ctx.Err())
		return nil, &DetectionError{Message: "model inference", Cause: fmt.Errorf("%w: %v", ErrInferenceTimeout, ctx.Err())}
	case outcome = <-done:
	}

	if outcome.err != nil {
		s.logger.Error("Detection on %s failed: %v", handle.ID, outcome.err)
		return nil, &DetectionError{Message: "model inference", Cause: outcome.err}
	}

	detections := normalize(handle, outcome.raw, threshold, img.Bounds())

	result := &DetectionResult{
		ModelID:    handle.ID,
		Threshold:  threshold,
		Detections: detections,
		Original:   img,
		Annotated:  Annotate(img, detections),
		Elapsed:    time.Since(start),
	}

	s.logger.Info("Detected %d object(s) with %s at threshold %.2f in %v", len(detections), handle.ID, threshold, result.Elapsed)
	return result, nil
}

// normalize filters raw detections by threshold, resolves class names, and
// converts boxes to integer pixel coordinates inside bounds. Input order is kept.
func normalize(handle *ModelHandle, raw []RawDetection, threshold float64, bounds image.Rectangle) []Detection {
	detections := make([]Detection, 0, len(raw))
	for _, r := range raw {
		if r.Confidence < threshold {
			continue
		}
		detections = append(detections, Detection{
			ClassID:    r.ClassID,
			ClassName:  handle.ClassName(r.ClassID),
			Confidence: r.Confidence,
			Box: BoundingBox{
				X1: clampInt(int(math.Round(r.X1)), bounds.Min.X, bounds.Max.X),
				Y1: clampInt(int(math.Round(r.Y1)), bounds.Min.Y, bounds.Max.Y),
				X2: clampInt(int(math.Round(r.X2)), bounds.Min.X, bounds.Max.X),
				Y2: clampInt(int(math.Round(r.Y2)), bounds.Min.Y, bounds.Max.Y),
			},
		})
	}
	return detections
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
