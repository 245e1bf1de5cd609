package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"detectserver/internal/config"
	"detectserver/internal/dto"
	"detectserver/internal/logger"
	"detectserver/internal/service"

	"github.com/disintegration/imaging"
)

// DetectHandler accepts a multipart upload ("file", "model", "confidence"),
// runs detection, and returns both images as PNG data URLs.
func DetectHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Upload exceeds size limit", err.Error())
				return
			}
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Expected a multipart form", err.Error())
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing image file", err.Error())
			return
		}
		defer file.Close()

		if !allowedExtension(header.Filename, cfg.AllowedImageExtensions) {
			WriteError(w, http.StatusBadRequest, CodeInvalidImage, "Unsupported file type", "accepted: "+strings.Join(cfg.AllowedImageExtensions, ", "))
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Could not read upload", err.Error())
			return
		}

		confidence := cfg.DefaultConfidence
		if v := r.FormValue("confidence"); v != "" {
			confidence, err = strconv.ParseFloat(v, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, CodeInvalidThreshold, "Confidence must be a number", err.Error())
				return
			}
		}

		result, err := manager.Detect(r.Context(), r.FormValue("model"), data, confidence)
		if err != nil {
			writeServiceError(w, err, logger)
			return
		}

		original, err := pngDataURL(result.Original)
		if err != nil {
			writeServiceError(w, err, logger)
			return
		}
		annotated, err := pngDataURL(result.Annotated)
		if err != nil {
			writeServiceError(w, err, logger)
			return
		}

		classes := append([]string{}, result.ClassSet()...)
		sort.Strings(classes)

		writeJSON(w, http.StatusOK, dto.DetectResponse{
			Model:      result.ModelID,
			Confidence: result.Threshold,
			Count:      len(result.Detections),
			Classes:    classes,
			Detections: result.Detections,
			Original:   original,
			Annotated:  annotated,
			ElapsedMs:  result.Elapsed.Milliseconds(),
		}, logger)
	}
}

func allowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func pngDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
