package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"detectserver/internal/service"
	"detectserver/internal/service/ai"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown model", fmt.Errorf("%w: x.onnx", service.ErrUnknownModel), http.StatusBadRequest, CodeUnknownModel},
		{"load failure", &ai.ModelLoadError{ModelID: "x", Cause: errors.New("corrupt")}, http.StatusInternalServerError, CodeModelLoad},
		{"malformed image", &ai.DetectionError{Message: "decode", Cause: ai.ErrMalformedImage}, http.StatusBadRequest, CodeInvalidImage},
		{"bad threshold", &ai.DetectionError{Message: "threshold", Cause: ai.ErrInvalidThreshold}, http.StatusBadRequest, CodeInvalidThreshold},
		{"timeout", &ai.DetectionError{Message: "infer", Cause: fmt.Errorf("%w: deadline", ai.ErrInferenceTimeout)}, http.StatusGatewayTimeout, CodeTimeout},
		{"inference fault", &ai.DetectionError{Message: "infer", Cause: errors.New("panic")}, http.StatusInternalServerError, CodeDetection},
		{"other", errors.New("disk"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classifyError(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("Expected %d/%s, got %d/%s", tt.status, tt.code, status, code)
			}
		})
	}
}

func TestAllowedExtension(t *testing.T) {
	allowed := []string{".jpg", ".jpeg", ".png"}
	tests := map[string]bool{
		"photo.jpg":    true,
		"photo.JPEG":   true,
		"scan.png":     true,
		"anim.gif":     false,
		"noextension":  false,
		"archive.png.": false,
	}

	for name, want := range tests {
		if got := allowedExtension(name, allowed); got != want {
			t.Errorf("allowedExtension(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if result := atoiDefault(tt.input, tt.def); result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}
