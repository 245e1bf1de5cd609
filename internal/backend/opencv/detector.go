// Package opencv runs YOLO ONNX exports through the OpenCV DNN module.
package opencv

import (
	"fmt"
	"image"
	"os"
	"sync"

	"detectserver/internal/service/ai"
	"detectserver/internal/yolo"

	"gocv.io/x/gocv"
)

// Loader opens ONNX artifacts with gocv.
type Loader struct {
	Options yolo.DecodeOptions
}

// NewLoader returns a loader with the default post-processing settings.
func NewLoader() *Loader {
	return &Loader{Options: yolo.DefaultDecodeOptions()}
}

// Load reads the network at path and prepares it for CPU inference.
func (l *Loader) Load(path string) (ai.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", path)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	d := &Detector{net: net, path: path, opts: l.Options}

	// One warm-up pass discovers the class count for the name table.
	shape, err := d.probe()
	if err != nil {
		net.Close()
		return nil, err
	}
	nc, err := yolo.NumClasses(shape)
	if err != nil {
		net.Close()
		return nil, err
	}

	names, err := yolo.LoadClassNames(path, nc)
	if err != nil {
		net.Close()
		return nil, err
	}
	d.names = names
	return d, nil
}

// Detector wraps one gocv.Net. Forward passes are serialized.
type Detector struct {
	mu    sync.Mutex
	net   gocv.Net
	path  string
	names map[int]string
	opts  yolo.DecodeOptions
}

func (d *Detector) probe() ([]int, error) {
	blank := image.NewNRGBA(image.Rect(0, 0, yolo.InputSize, yolo.InputSize))
	_, shape, err := d.forward(blank)
	return shape, err
}

// Infer letterboxes img, runs the network, and decodes the YOLO head.
func (d *Detector) Infer(img image.Image, threshold float64) ([]ai.RawDetection, error) {
	padded, tr := yolo.Letterbox(img, yolo.InputSize)

	output, shape, err := d.forward(padded)
	if err != nil {
		return nil, err
	}

	candidates, err := yolo.Decode(output, shape, threshold, tr, d.opts)
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

func (d *Detector) forward(img *image.NRGBA) ([]float32, []int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, nil, fmt.Errorf("converted image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(yolo.InputSize, yolo.InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, nil, fmt.Errorf("network returned no output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read output: %v", err)
	}

	// The Mat owns data; copy before it is closed.
	out := make([]float32, len(data))
	copy(out, data)
	return out, output.Size(), nil
}

// ClassNames returns the class table discovered at load time.
func (d *Detector) ClassNames() map[int]string {
	return d.names
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
