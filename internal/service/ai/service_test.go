package ai

import (
	"context"
	"errors"
	"image/color"
	"math"
	"testing"
	"time"
)

func loadedService(t *testing.T, model *fakeModel, limits Limits) (*InferenceService, *ModelHandle) {
	t.Helper()
	dir := t.TempDir()
	writeArtifact(t, dir, "yolov8n.onnx")
	svc := NewInferenceService(dirResolver(dir), newFakeLoader(model), NewModelCache(), limits, newTestLogger(t))
	handle, err := svc.GetOrLoadModel("yolov8n.onnx")
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	return svc, handle
}

func sampleModel() *fakeModel {
	return &fakeModel{
		names: map[int]string{0: "person", 2: "car"},
		raw: []RawDetection{
			{ClassID: 0, Confidence: 0.91, X1: 2, Y1: 3, X2: 20, Y2: 30},
			{ClassID: 2, Confidence: 0.55, X1: 10, Y1: 10, X2: 40, Y2: 25},
			{ClassID: 7, Confidence: 0.30, X1: 0, Y1: 0, X2: 5, Y2: 5},
			{ClassID: 0, Confidence: 0.10, X1: 1, Y1: 1, X2: 4, Y2: 4},
		},
	}
}

func TestDetect_ThresholdMonotonicity(t *testing.T) {
	svc, handle := loadedService(t, sampleModel(), Limits{})
	img := solidPNG(t, 48, 48, color.RGBA{R: 30, G: 60, B: 90, A: 255})

	thresholds := []float64{0, 0.1, 0.25, 0.3, 0.55, 0.6, 0.91, 1}
	var prev []Detection
	for i, th := range thresholds {
		result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: img, ConfidenceThreshold: th})
		if err != nil {
			t.Fatalf("Detect at %.2f failed: %v", th, err)
		}
		for _, d := range result.Detections {
			if d.Confidence < th {
				t.Errorf("Detection %+v below threshold %.2f", d, th)
			}
		}
		if i > 0 && !isSubset(result.Detections, prev) {
			t.Errorf("Detections at %.2f are not a subset of those at %.2f", th, thresholds[i-1])
		}
		prev = result.Detections
	}
}

func isSubset(sub, super []Detection) bool {
	for _, d := range sub {
		found := false
		for _, s := range super {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestDetect_InclusiveThresholdAndNames(t *testing.T) {
	svc, handle := loadedService(t, sampleModel(), Limits{})
	img := solidPNG(t, 48, 48, color.RGBA{R: 200, G: 200, B: 200, A: 255})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: img, ConfidenceThreshold: 0.30})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(result.Detections) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(result.Detections))
	}
	names := []string{"person", "car", "class_7"}
	for i, want := range names {
		if result.Detections[i].ClassName != want {
			t.Errorf("Detection %d: expected %q, got %q", i, want, result.Detections[i].ClassName)
		}
	}

	classes := result.ClassSet()
	if len(classes) != 3 || classes[0] != "person" {
		t.Errorf("Unexpected class set %v", classes)
	}
}

func TestDetect_ClampsBoxesToImage(t *testing.T) {
	model := &fakeModel{raw: []RawDetection{{ClassID: 0, Confidence: 0.8, X1: -12.4, Y1: -3, X2: 70.6, Y2: 30.2}}}
	svc, handle := loadedService(t, model, Limits{})
	img := solidPNG(t, 32, 24, color.RGBA{A: 255})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: img, ConfidenceThreshold: 0.5})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	want := BoundingBox{X1: 0, Y1: 0, X2: 32, Y2: 24}
	if got := result.Detections[0].Box; got != want {
		t.Errorf("Expected box %+v, got %+v", want, got)
	}
}

func TestDetect_EmptyResultIsNotAnError(t *testing.T) {
	svc, handle := loadedService(t, &fakeModel{}, Limits{})
	img := solidPNG(t, 40, 30, color.RGBA{R: 12, G: 34, B: 56, A: 255})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: img, ConfidenceThreshold: 0.25})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Detections == nil || len(result.Detections) != 0 {
		t.Errorf("Expected empty non-nil detections, got %v", result.Detections)
	}
	if !sameImage(result.Annotated, result.Original) {
		t.Error("Expected annotated image to equal the input")
	}
}

func TestDetect_AnnotatesWhenObjectsFound(t *testing.T) {
	svc, handle := loadedService(t, sampleModel(), Limits{})
	img := solidPNG(t, 48, 48, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: img, ConfidenceThreshold: 0.5})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Annotated.Bounds() != result.Original.Bounds() {
		t.Errorf("Annotated bounds %v differ from original %v", result.Annotated.Bounds(), result.Original.Bounds())
	}
	if sameImage(result.Annotated, result.Original) {
		t.Error("Expected boxes to be drawn on the annotated image")
	}
}

func TestDetect_FailsClosed(t *testing.T) {
	svc, handle := loadedService(t, sampleModel(), Limits{})
	valid := solidPNG(t, 8, 8, color.RGBA{A: 255})

	tests := []struct {
		name      string
		req       DetectionRequest
		wantCause error
	}{
		{"empty buffer", DetectionRequest{Image: nil, ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"not an image", DetectionRequest{Image: []byte("plain text"), ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"truncated png", DetectionRequest{Image: valid[:20], ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"zero-area png", DetectionRequest{Image: zeroWidthPNG(t), ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"gif", DetectionRequest{Image: encodedPaletted(t, "gif"), ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"bmp", DetectionRequest{Image: encodedPaletted(t, "bmp"), ConfidenceThreshold: 0.25}, ErrMalformedImage},
		{"negative threshold", DetectionRequest{Image: valid, ConfidenceThreshold: -0.1}, ErrInvalidThreshold},
		{"threshold above one", DetectionRequest{Image: valid, ConfidenceThreshold: 1.5}, ErrInvalidThreshold},
		{"nan threshold", DetectionRequest{Image: valid, ConfidenceThreshold: math.NaN()}, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Detect(context.Background(), handle, tt.req)
			if result != nil {
				t.Errorf("Expected nil result, got %+v", result)
			}
			var detErr *DetectionError
			if !errors.As(err, &detErr) {
				t.Fatalf("Expected DetectionError, got %v", err)
			}
			if !errors.Is(err, tt.wantCause) {
				t.Errorf("Expected cause %v, got %v", tt.wantCause, err)
			}
		})
	}
}

func TestDetect_RejectsOversizedImage(t *testing.T) {
	model := sampleModel()
	svc, handle := loadedService(t, model, Limits{MaxPixels: 100})

	_, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: solidPNG(t, 16, 16, color.White), ConfidenceThreshold: 0.25})
	if !errors.Is(err, ErrMalformedImage) {
		t.Fatalf("Expected ErrMalformedImage for 256 pixels, got %v", err)
	}
	if model.calls.Load() != 0 {
		t.Errorf("Model ran on a rejected image")
	}

	if _, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: solidPNG(t, 10, 10, color.White), ConfidenceThreshold: 0.25}); err != nil {
		t.Errorf("Expected 100 pixels to be accepted, got %v", err)
	}
}

func TestDetect_ModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("tensor shape mismatch")}
	svc, handle := loadedService(t, model, Limits{})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: solidPNG(t, 8, 8, color.White), ConfidenceThreshold: 0.25})
	var detErr *DetectionError
	if result != nil || !errors.As(err, &detErr) {
		t.Fatalf("Expected DetectionError and nil result, got %v, %v", result, err)
	}
}

func TestDetect_Timeout(t *testing.T) {
	model := sampleModel()
	model.delay = 500 * time.Millisecond
	svc, handle := loadedService(t, model, Limits{DetectTimeout: 20 * time.Millisecond})

	result, err := svc.Detect(context.Background(), handle, DetectionRequest{Image: solidPNG(t, 8, 8, color.White), ConfidenceThreshold: 0.25})
	if result != nil {
		t.Errorf("Expected nil result on timeout")
	}
	if !errors.Is(err, ErrInferenceTimeout) {
		t.Fatalf("Expected ErrInferenceTimeout, got %v", err)
	}
}

func TestDetect_SlotHeldUntilModelReturns(t *testing.T) {
	model := sampleModel()
	model.delay = 200 * time.Millisecond
	svc, handle := loadedService(t, model, Limits{DetectTimeout: 20 * time.Millisecond, Workers: 1})
	req := DetectionRequest{Image: solidPNG(t, 8, 8, color.White), ConfidenceThreshold: 0.25}

	if _, err := svc.Detect(context.Background(), handle, req); !errors.Is(err, ErrInferenceTimeout) {
		t.Fatalf("Expected first detection to time out, got %v", err)
	}

	// The abandoned call still owns the only slot.
	if _, err := svc.Detect(context.Background(), handle, req); !errors.Is(err, ErrInferenceTimeout) {
		t.Fatalf("Expected second detection to time out waiting for a slot, got %v", err)
	}
	if got := model.calls.Load(); got != 1 {
		t.Errorf("Expected 1 model call in flight, got %d", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !svc.slots.TryAcquire(1) {
		if time.Now().After(deadline) {
			t.Fatal("Slot was not released after the model returned")
		}
		time.Sleep(10 * time.Millisecond)
	}
	svc.slots.Release(1)
}

func TestDetect_NilHandle(t *testing.T) {
	svc, _ := loadedService(t, sampleModel(), Limits{})

	_, err := svc.Detect(context.Background(), nil, DetectionRequest{Image: solidPNG(t, 8, 8, color.White), ConfidenceThreshold: 0.25})
	var detErr *DetectionError
	if !errors.As(err, &detErr) {
		t.Fatalf("Expected DetectionError, got %v", err)
	}
}

func TestLabelAndColor(t *testing.T) {
	d := Detection{ClassID: 3, ClassName: "dog", Confidence: 0.876}
	if got := Label(d); got != "dog 0.88" {
		t.Errorf("Expected label %q, got %q", "dog 0.88", got)
	}
	if ColorFor(3) != ColorFor(3+len(palette)) {
		t.Error("Expected palette to cycle")
	}
	if ColorFor(-1) != ColorFor(1) {
		t.Error("Expected negative ids to map to a palette entry")
	}
}
