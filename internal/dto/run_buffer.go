package dto

import (
	"image"
	"time"

	"detectserver/internal/service/ai"
)

// BufferedRun holds a finished detection before it is flushed to disk.
type BufferedRun struct {
	Timestamp  time.Time
	Model      string
	Confidence float64
	Detections []ai.Detection
	Annotated  image.Image
}
