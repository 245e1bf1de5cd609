// Package onnx runs YOLO ONNX exports through onnxruntime.
package onnx

import (
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"detectserver/internal/service/ai"
	"detectserver/internal/yolo"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

// Loader opens ONNX artifacts with onnxruntime. The runtime environment is
// initialized on the first Load.
type Loader struct {
	LibraryPath string
	Options     yolo.DecodeOptions
}

// NewLoader returns a loader using the shared library at libPath. An empty
// path leaves the platform default in place.
func NewLoader(libPath string) *Loader {
	return &Loader{LibraryPath: libPath, Options: yolo.DefaultDecodeOptions()}
}

func (l *Loader) initEnvironment() error {
	envOnce.Do(func() {
		if l.LibraryPath != "" {
			ort.SetSharedLibraryPath(l.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// Shutdown tears down the onnxruntime environment.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Load creates a session for the model at path with fixed-size tensors taken
// from the model's declared inputs and outputs.
func (l *Loader) Load(path string) (ai.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := l.initEnvironment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("expected one input and at least one output, got %d and %d", len(inputs), len(outputs))
	}

	inputShape := ort.NewShape(1, 3, yolo.InputSize, yolo.InputSize)
	outputShape := outputs[0].Dimensions
	for _, dim := range outputShape {
		if dim <= 0 {
			return nil, fmt.Errorf("output %s has dynamic shape %v", outputs[0].Name, outputShape)
		}
	}
	shape := make([]int, len(outputShape))
	for i, dim := range outputShape {
		shape[i] = int(dim)
	}
	nc, err := yolo.NumClasses(shape)
	if err != nil {
		return nil, err
	}

	names, err := classNames(path, nc)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(1)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Detector{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		shape:   shape,
		names:   names,
		opts:    l.Options,
	}, nil
}

// classNames prefers the names embedded in the export's metadata, then the
// sidecar/COCO fallbacks.
func classNames(path string, nc int) (map[int]string, error) {
	meta, err := ort.GetModelMetadata(path)
	if err == nil {
		defer meta.Destroy()
		if doc, ok, err := meta.LookupCustomMetadataMap("names"); err == nil && ok {
			if names, err := yolo.ParseClassNames(doc); err == nil {
				return names, nil
			}
		}
	}
	return yolo.LoadClassNames(path, nc)
}

// Detector owns one session and its bound tensors. Runs are serialized.
type Detector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	shape   []int
	names   map[int]string
	opts    yolo.DecodeOptions
}

// Infer letterboxes img, runs the session, and decodes the YOLO head.
func (d *Detector) Infer(img image.Image, threshold float64) ([]ai.RawDetection, error) {
	padded, tr := yolo.Letterbox(img, yolo.InputSize)
	chw := yolo.ToCHW(padded)

	d.mu.Lock()
	copy(d.input.GetData(), chw)
	if err := d.session.Run(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("error running session: %w", err)
	}
	output := make([]float32, len(d.output.GetData()))
	copy(output, d.output.GetData())
	d.mu.Unlock()

	candidates, err := yolo.Decode(output, d.shape, threshold, tr, d.opts)
	if err != nil {
		return nil, err
	}

	raw := make([]ai.RawDetection, len(candidates))
	for i, c := range candidates {
		raw[i] = ai.RawDetection{
			ClassID:    c.ClassID,
			Confidence: float64(c.Confidence),
			X1:         c.X1,
			Y1:         c.Y1,
			X2:         c.X2,
			Y2:         c.Y2,
		}
	}
	return raw, nil
}

// ClassNames returns the class table discovered at load time.
func (d *Detector) ClassNames() map[int]string {
	return d.names
}

// Close destroys the session and its tensors.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return err
}
