package dto

import "detectserver/internal/service/ai"

// DetectResponse is the payload returned for one detection request. Images
// are PNG data URLs so a page can show them side by side.
type DetectResponse struct {
	Model      string         `json:"model"`
	Confidence float64        `json:"confidence"`
	Count      int            `json:"count"`
	Classes    []string       `json:"classes"`
	Detections []ai.Detection `json:"detections"`
	Original   string         `json:"original"`
	Annotated  string         `json:"annotated"`
	ElapsedMs  int64          `json:"elapsedMs"`
}

// FeedEvent is broadcast to live viewers after each detection.
type FeedEvent struct {
	Model      string   `json:"model"`
	Confidence float64  `json:"confidence"`
	Count      int      `json:"count"`
	Classes    []string `json:"classes"`
	Timestamp  string   `json:"timestamp"`
}
