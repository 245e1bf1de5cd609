package model

import "time"

// Run represents one stored detection request.
type Run struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	Model          string    `json:"model"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
	FilePath       string    `json:"filepath"`
	FileSize       int64     `json:"filesize"`
	DetectionCount int       `json:"detection_count"`
}

// RunFilter contains filtering options for querying runs.
type RunFilter struct {
	Model     string
	ClassName string
	StartDate time.Time // Inclusive; zero means unbounded
	EndDate   time.Time // Inclusive; zero means unbounded
	Limit     int
	Offset    int
}
