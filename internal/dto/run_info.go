package dto

import (
	"encoding/json"
	"time"
)

// RunInfo represents a stored run as listed in the history.
type RunInfo struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Confidence float64   `json:"confidence"`
	Date       time.Time `json:"date"`
	TimeOfDay  time.Time `json:"timeOfDay"`
	Count      int       `json:"count"`
	Classes    []string  `json:"classes"`
}

// MarshalJSON customizes JSON output for RunInfo to format date and time-of-day.
func (r RunInfo) MarshalJSON() ([]byte, error) {
	type Alias RunInfo
	return json.Marshal(&struct {
		Alias
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
	}{
		Alias:     (Alias)(r),
		Date:      r.Date.Format("02-01-2006"),
		TimeOfDay: r.TimeOfDay.Format("15:04:05"),
	})
}
