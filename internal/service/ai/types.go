package ai

import (
	"fmt"
	"image"
	"time"
)

// Loader loads a model artifact from disk.
type Loader interface {
	Load(path string) (Model, error)
}

// Model is a loaded, ready-to-run detector.
type Model interface {
	// Infer returns candidate detections scoring at or above threshold, in
	// source pixel coordinates.
	Infer(img image.Image, threshold float64) ([]RawDetection, error)
	// ClassNames maps class ids to human-readable names.
	ClassNames() map[int]string
	Close() error
}

// RawDetection is a detector output before normalization.
type RawDetection struct {
	ClassID    int
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// ModelHandle is a loaded model owned by the cache. It is never mutated after
// construction.
type ModelHandle struct {
	ID         string
	Path       string
	ClassNames map[int]string
	LoadedAt   time.Time
	model      Model
}

// ClassName resolves classID through the handle's class table.
func (h *ModelHandle) ClassName(classID int) string {
	if name, ok := h.ClassNames[classID]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", classID)
}

// DetectionRequest is one image submitted for detection.
type DetectionRequest struct {
	Image               []byte
	ConfidenceThreshold float64
}

// BoundingBox is an axis-aligned box in image pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Detection is one retained object.
type Detection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionResult holds the retained detections and the annotated image.
type DetectionResult struct {
	ModelID    string
	Threshold  float64
	Detections []Detection
	Original   image.Image
	Annotated  image.Image
	Elapsed    time.Duration
}

// ClassSet returns the distinct class names among the detections, in first-seen order.
func (r *DetectionResult) ClassSet() []string {
	seen := make(map[string]bool)
	var classes []string
	for _, d := range r.Detections {
		if !seen[d.ClassName] {
			seen[d.ClassName] = true
			classes = append(classes, d.ClassName)
		}
	}
	return classes
}
