package dto

// ModelInfo describes one entry of the model picker.
type ModelInfo struct {
	ID     string `json:"id"`
	Custom bool   `json:"custom"`
	Loaded bool   `json:"loaded"`
}

// ModelsData is the response for the model listing.
type ModelsData struct {
	Models            []ModelInfo `json:"models"`
	Default           string      `json:"default"`
	DefaultConfidence float64     `json:"defaultConfidence"`
	ConfidenceStep    float64     `json:"confidenceStep"`
}
