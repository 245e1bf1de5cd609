package ai

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"detectserver/internal/logger"

	"golang.org/x/image/bmp"
)

type fakeModel struct {
	raw    []RawDetection
	names  map[int]string
	err    error
	delay  time.Duration
	closed atomic.Bool
	calls  atomic.Int32
}

func (m *fakeModel) Infer(img image.Image, threshold float64) ([]RawDetection, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	var out []RawDetection
	for _, r := range m.raw {
		if r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *fakeModel) ClassNames() map[int]string { return m.names }

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

// fakeLoader serves models only for artifacts that exist on disk, like a real
// loader would.
type fakeLoader struct {
	mu     sync.Mutex
	calls  map[string]int
	model  *fakeModel
	delay  time.Duration
	failed error
}

func newFakeLoader(model *fakeModel) *fakeLoader {
	return &fakeLoader{calls: make(map[string]int), model: model}
}

func (l *fakeLoader) Load(path string) (Model, error) {
	l.mu.Lock()
	l.calls[path]++
	l.mu.Unlock()

	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.failed != nil {
		return nil, l.failed
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return l.model, nil
}

func (l *fakeLoader) Calls(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

type dirResolver string

func (d dirResolver) Resolve(id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", errors.New("bad id")
	}
	return filepath.Join(string(d), id), nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	return path
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// zeroWidthPNG is a well-formed PNG header declaring a 0x8 image.
func zeroWidthPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 0)
	binary.BigEndian.PutUint32(ihdr[4:8], 8)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func encodedPaletted(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 16, 16), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	var err error
	switch format {
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("Unknown format %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func sameImage(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	for y := a.Bounds().Min.Y; y < a.Bounds().Max.Y; y++ {
		for x := a.Bounds().Min.X; x < a.Bounds().Max.X; x++ {
			r1, g1, b1, a1 := a.At(x, y).RGBA()
			r2, g2, b2, a2 := b.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				return false
			}
		}
	}
	return true
}
