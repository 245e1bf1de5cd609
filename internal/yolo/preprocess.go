// Package yolo converts images to YOLO input tensors and decodes YOLO output
// tensors back into source-image detections.
package yolo

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// InputSize is the square input resolution of the exported detectors.
const InputSize = 640

// padColor matches the gray used by the training pipeline's letterbox.
var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Transform records how a source image was letterboxed so boxes can be mapped back.
type Transform struct {
	Scale        float64
	PadX, PadY   float64
	SourceWidth  int
	SourceHeight int
}

// ToSource maps a point in letterboxed input space to source pixel space.
func (t Transform) ToSource(x, y float64) (float64, float64) {
	return (x - t.PadX) / t.Scale, (y - t.PadY) / t.Scale
}

// Letterbox resizes img to fit a size x size square, preserving aspect ratio,
// and centers it on a gray canvas.
func Letterbox(img image.Image, size int) (*image.NRGBA, Transform) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := float64(size) / float64(w)
	if s := float64(size) / float64(h); s < scale {
		scale = s
	}

	newW := int(float64(w)*scale + 0.5)
	newH := int(float64(h)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, padColor)

	padX := (size - newW) / 2
	padY := (size - newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, Transform{
		Scale:        scale,
		PadX:         float64(padX),
		PadY:         float64(padY),
		SourceWidth:  w,
		SourceHeight: h,
	}
}

// ToCHW flattens img into planar RGB float32 values scaled to [0, 1].
func ToCHW(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	channelSize := w * h
	data := make([]float32, channelSize*3)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		offset := y * w
		for x := 0; x < w; x++ {
			i := offset + x
			data[i] = float32(row[x*4]) / 255.0
			data[channelSize+i] = float32(row[x*4+1]) / 255.0
			data[channelSize*2+i] = float32(row[x*4+2]) / 255.0
		}
	}

	return data
}
