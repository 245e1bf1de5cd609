package ai

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	boxLineWidth = 2.0
	labelPadding = 3.0
)

// palette cycles per class id so neighbouring classes stay distinguishable.
var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
}

// ColorFor returns the drawing color for a class id.
func ColorFor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Label formats the caption drawn above a box.
func Label(d Detection) string {
	return fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
}

// Annotate returns a copy of img with each detection's box and label drawn.
// With no detections the copy is pixel-identical to img.
func Annotate(img image.Image, detections []Detection) image.Image {
	if len(detections) == 0 {
		return imaging.Clone(img)
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(boxLineWidth)

	for _, d := range detections {
		c := ColorFor(d.ClassID)
		x1, y1 := float64(d.Box.X1), float64(d.Box.Y1)
		w, h := float64(d.Box.X2-d.Box.X1), float64(d.Box.Y2-d.Box.Y1)

		dc.SetColor(c)
		dc.DrawRectangle(x1, y1, w, h)
		dc.Stroke()

		label := Label(d)
		tw, th := dc.MeasureString(label)
		ty := y1 - th - 2*labelPadding
		if ty < 0 {
			ty = y1
		}

		dc.DrawRectangle(x1, ty, tw+2*labelPadding, th+2*labelPadding)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawStringAnchored(label, x1+labelPadding, ty+labelPadding, 0, 1)
	}

	return dc.Image()
}
