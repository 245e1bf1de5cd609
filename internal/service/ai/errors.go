package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreshold marks a confidence threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0, 1]")
	// ErrMalformedImage marks an image buffer that cannot be decoded or has no area.
	ErrMalformedImage = errors.New("malformed image")
	// ErrInferenceTimeout marks a model invocation that exceeded its deadline.
	ErrInferenceTimeout = errors.New("inference timed out")
)

// ModelLoadError reports a model artifact that could not be loaded.
type ModelLoadError struct {
	ModelID string
	Cause   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.ModelID, e.Cause)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Cause
}

// DetectionError reports a failed detection: bad input or an inference fault.
type DetectionError struct {
	Message string
	Cause   error
}

func (e *DetectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DetectionError) Unwrap() error {
	return e.Cause
}
