package yolo

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildOutput lays boxes out in the [1, 4+nc, anchors] format.
func buildOutput(nc int, boxes [][4]float32, scores [][]float32) ([]float32, []int) {
	anchors := len(boxes)
	out := make([]float32, (4+nc)*anchors)
	for i, b := range boxes {
		for k := 0; k < 4; k++ {
			out[k*anchors+i] = b[k]
		}
		for c := 0; c < nc; c++ {
			out[(4+c)*anchors+i] = scores[i][c]
		}
	}
	return out, []int{1, 4 + nc, anchors}
}

func identity(w, h int) Transform {
	return Transform{Scale: 1, SourceWidth: w, SourceHeight: h}
}

func TestDecode_ThresholdIsInclusive(t *testing.T) {
	out, shape := buildOutput(2,
		[][4]float32{{50, 50, 20, 20}, {150, 150, 20, 20}},
		[][]float32{{0.5, 0.1}, {0.2, 0.49}},
	)

	got, err := Decode(out, shape, 0.5, identity(640, 640), DefaultDecodeOptions())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].ClassID != 0 || got[0].Confidence != 0.5 {
		t.Errorf("Unexpected candidate %+v", got[0])
	}
	if got[0].X1 != 40 || got[0].Y1 != 40 || got[0].X2 != 60 || got[0].Y2 != 60 {
		t.Errorf("Unexpected box %+v", got[0])
	}
}

func TestDecode_BestClassAndNMS(t *testing.T) {
	out, shape := buildOutput(3,
		[][4]float32{
			{100, 100, 40, 40}, // class 2, 0.9
			{102, 101, 40, 40}, // same class, overlapping, suppressed
			{101, 100, 40, 40}, // overlapping but different class, kept
			{400, 400, 50, 50}, // far away, kept
		},
		[][]float32{
			{0.1, 0.2, 0.9},
			{0.1, 0.2, 0.8},
			{0.7, 0.1, 0.1},
			{0.1, 0.6, 0.1},
		},
	)

	got, err := Decode(out, shape, 0.25, identity(640, 640), DefaultDecodeOptions())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 candidates, got %d: %+v", len(got), got)
	}

	expectedClasses := []int{2, 0, 1}
	for i, c := range got {
		if c.ClassID != expectedClasses[i] {
			t.Errorf("Candidate %d: expected class %d, got %d", i, expectedClasses[i], c.ClassID)
		}
	}
}

func TestDecode_MaxDetections(t *testing.T) {
	boxes := make([][4]float32, 10)
	scores := make([][]float32, 10)
	for i := range boxes {
		boxes[i] = [4]float32{float32(30 + i*60), 30, 20, 20}
		scores[i] = []float32{0.9}
	}
	out, shape := buildOutput(1, boxes, scores)

	got, err := Decode(out, shape, 0.1, identity(640, 640), DecodeOptions{IoUThreshold: 0.7, MaxDetections: 4})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Expected 4 candidates, got %d", len(got))
	}
}

func TestDecode_BadShape(t *testing.T) {
	tests := []struct {
		name  string
		out   []float32
		shape []int
	}{
		{"rank", make([]float32, 10), []int{10}},
		{"no classes", make([]float32, 4), []int{1, 4, 1}},
		{"length mismatch", make([]float32, 5), []int{1, 6, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.out, tt.shape, 0.25, identity(10, 10), DefaultDecodeOptions()); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestDecode_ClampsToSource(t *testing.T) {
	out, shape := buildOutput(1, [][4]float32{{5, 5, 40, 40}}, [][]float32{{0.9}})

	got, err := Decode(out, shape, 0.25, identity(20, 20), DefaultDecodeOptions())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	c := got[0]
	if c.X1 != 0 || c.Y1 != 0 || c.X2 != 20 || c.Y2 != 20 {
		t.Errorf("Expected box clamped to image, got %+v", c)
	}
}

func TestIoU(t *testing.T) {
	a := Candidate{X1: 0, Y1: 0, X2: 10, Y2: 10}
	tests := []struct {
		name     string
		b        Candidate
		expected float64
	}{
		{"identical", Candidate{X1: 0, Y1: 0, X2: 10, Y2: 10}, 1},
		{"disjoint", Candidate{X1: 20, Y1: 20, X2: 30, Y2: 30}, 0},
		{"half", Candidate{X1: 5, Y1: 0, X2: 15, Y2: 10}, 50.0 / 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(a, tt.b); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("IoU = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestLetterbox_WideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 640))

	out, tr := Letterbox(img, InputSize)

	if out.Bounds().Dx() != InputSize || out.Bounds().Dy() != InputSize {
		t.Fatalf("Expected %dx%d canvas, got %v", InputSize, InputSize, out.Bounds())
	}
	if tr.Scale != 0.5 || tr.PadX != 0 || tr.PadY != 160 {
		t.Errorf("Unexpected transform %+v", tr)
	}

	// Padding rows keep the gray fill.
	if c := out.NRGBAAt(10, 10); c != padColor {
		t.Errorf("Expected pad color at top, got %v", c)
	}

	x, y := tr.ToSource(320, 320)
	if x != 640 || y != 320 {
		t.Errorf("ToSource(320, 320) = (%v, %v), expected (640, 320)", x, y)
	}
}

func TestToCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 255, A: 255})

	data := ToCHW(img)

	expected := []float32{1, 0, 0, 0, 0, 1}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("data[%d] = %v, expected %v", i, data[i], expected[i])
		}
	}
}

func TestParseClassNames(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want map[int]string
	}{
		{"metadata mapping", "{0: 'crack', 1: 'spalling'}", map[int]string{0: "crack", 1: "spalling"}},
		{"sequence", "- crack\n- spalling\n", map[int]string{0: "crack", 1: "spalling"}},
		{"data yaml list", "path: ../data\nnames: [crack, spalling]\n", map[int]string{0: "crack", 1: "spalling"}},
		{"data yaml map", "nc: 2\nnames:\n  0: crack\n  1: spalling\n", map[int]string{0: "crack", 1: "spalling"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassNames(tt.doc)
			if err != nil {
				t.Fatalf("ParseClassNames failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d names, got %v", len(tt.want), got)
			}
			for id, name := range tt.want {
				if got[id] != name {
					t.Errorf("names[%d] = %q, expected %q", id, got[id], name)
				}
			}
		})
	}
}

func TestParseClassNames_Invalid(t *testing.T) {
	for _, doc := range []string{"", "{a: crack}", "[unterminated"} {
		if _, err := ParseClassNames(doc); err == nil {
			t.Errorf("Expected error for %q", doc)
		}
	}
}

func TestLoadClassNames(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "concrete.onnx")

	names, err := LoadClassNames(modelPath, 80)
	if err != nil {
		t.Fatalf("LoadClassNames failed: %v", err)
	}
	if names[0] != "person" || len(names) != 80 {
		t.Errorf("Expected COCO fallback, got %d names", len(names))
	}

	names, err = LoadClassNames(modelPath, 3)
	if err != nil || len(names) != 0 {
		t.Errorf("Expected empty table for unknown head, got %v, %v", names, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "concrete.yaml"), []byte("names: [crack]\n"), 0644); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}
	names, err = LoadClassNames(modelPath, 80)
	if err != nil {
		t.Fatalf("LoadClassNames failed: %v", err)
	}
	if len(names) != 1 || names[0] != "crack" {
		t.Errorf("Expected sidecar names, got %v", names)
	}
}
