package yolo

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultIoUThreshold is the overlap above which same-class boxes are suppressed.
	DefaultIoUThreshold = 0.7
	// DefaultMaxDetections caps the number of boxes kept per image.
	DefaultMaxDetections = 300
)

// Candidate is one decoded box in source pixel coordinates.
type Candidate struct {
	ClassID    int
	Confidence float32
	X1, Y1     float64
	X2, Y2     float64
}

// DecodeOptions tunes post-processing.
type DecodeOptions struct {
	IoUThreshold  float64
	MaxDetections int
}

// DefaultDecodeOptions returns the settings used by the exported detectors.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		IoUThreshold:  DefaultIoUThreshold,
		MaxDetections: DefaultMaxDetections,
	}
}

// NumClasses derives the class count from a [1, 4+nc, anchors] output shape.
func NumClasses(shape []int) (int, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] <= 4 || shape[2] <= 0 {
		return 0, fmt.Errorf("unexpected output shape %v", shape)
	}
	return shape[1] - 4, nil
}

// Decode turns a YOLOv8-style output tensor of shape [1, 4+nc, anchors] into
// candidates whose best class score is at least threshold, after class-aware
// non-maximum suppression. Results are ordered by descending confidence.
func Decode(output []float32, shape []int, threshold float64, tr Transform, opts DecodeOptions) ([]Candidate, error) {
	nc, err := NumClasses(shape)
	if err != nil {
		return nil, err
	}
	anchors := shape[2]
	if len(output) != (4+nc)*anchors {
		return nil, fmt.Errorf("output length %d does not match shape %v", len(output), shape)
	}

	candidates := make([]Candidate, 0, 64)
	for i := 0; i < anchors; i++ {
		classID := 0
		best := output[4*anchors+i]
		for c := 1; c < nc; c++ {
			if s := output[(4+c)*anchors+i]; s > best {
				best = s
				classID = c
			}
		}
		if float64(best) < threshold {
			continue
		}

		cx := float64(output[i])
		cy := float64(output[anchors+i])
		w := float64(output[2*anchors+i])
		h := float64(output[3*anchors+i])

		x1, y1 := tr.ToSource(cx-w/2, cy-h/2)
		x2, y2 := tr.ToSource(cx+w/2, cy+h/2)

		candidates = append(candidates, Candidate{
			ClassID:    classID,
			Confidence: best,
			X1:         clamp(x1, 0, float64(tr.SourceWidth)),
			Y1:         clamp(y1, 0, float64(tr.SourceHeight)),
			X2:         clamp(x2, 0, float64(tr.SourceWidth)),
			Y2:         clamp(y2, 0, float64(tr.SourceHeight)),
		})
	}

	return NonMaxSuppression(candidates, opts), nil
}

// NonMaxSuppression keeps the highest-confidence box among overlapping boxes of
// the same class.
func NonMaxSuppression(candidates []Candidate, opts DecodeOptions) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if opts.MaxDetections > 0 && len(kept) >= opts.MaxDetections {
			break
		}
		suppressed := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && IoU(k, c) > opts.IoUThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}

	return kept
}

// IoU is the intersection-over-union of two boxes.
func IoU(a, b Candidate) float64 {
	x1 := math.Max(a.X1, b.X1)
	y1 := math.Max(a.Y1, b.Y1)
	x2 := math.Min(a.X2, b.X2)
	y2 := math.Min(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - intersection
	if union <= 0 {
		return 0.0
	}
	return intersection / union
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
