package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"detectserver/internal/config"
	"detectserver/internal/dto"
	"detectserver/internal/logger"
	"detectserver/internal/registry"
	"detectserver/internal/service/ai"
	"detectserver/internal/service/storage"
	"detectserver/internal/service/websocket"
)

// ErrUnknownModel is returned for identifiers the registry does not offer.
var ErrUnknownModel = errors.New("unknown model")

// Manager runs one page interaction end to end: pick a model, detect, keep
// the result, and tell live viewers.
type Manager struct {
	registry         *registry.Registry
	inference        *ai.InferenceService
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	config           *config.Config
	logger           *logger.Logger
}

// NewManager wires the manager. bufferService and websocketService may be nil
// when history or live viewers are not wanted.
func NewManager(config *config.Config, registry *registry.Registry, inference *ai.InferenceService, bufferService *storage.BufferService, websocketService *websocket.HubService, logger *logger.Logger) *Manager {
	return &Manager{
		registry:         registry,
		inference:        inference,
		bufferService:    bufferService,
		websocketService: websocketService,
		config:           config,
		logger:           logger,
	}
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

// Models returns the picker contents with the baseline first.
func (m *Manager) Models() dto.ModelsData {
	ids := m.registry.ListAvailableModels()
	models := make([]dto.ModelInfo, 0, len(ids))
	for _, id := range ids {
		_, loaded := m.inference.Cache().Get(id)
		models = append(models, dto.ModelInfo{
			ID:     id,
			Custom: m.registry.IsCustom(id),
			Loaded: loaded,
		})
	}

	return dto.ModelsData{
		Models:            models,
		Default:           m.registry.Baseline(),
		DefaultConfidence: m.config.DefaultConfidence,
		ConfidenceStep:    m.config.ConfidenceStep,
	}
}

func (m *Manager) selectModel(id string) (string, error) {
	if id == "" {
		id = m.registry.Baseline()
	}
	if !m.registry.Validate(id) {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return id, nil
}

// Preload loads id into the cache without running a detection.
func (m *Manager) Preload(id string) (*ai.ModelHandle, error) {
	id, err := m.selectModel(id)
	if err != nil {
		return nil, err
	}
	return m.inference.GetOrLoadModel(id)
}

// Detect runs image through model id at the given confidence. An empty id
// selects the baseline model.
func (m *Manager) Detect(ctx context.Context, id string, image []byte, confidence float64) (*ai.DetectionResult, error) {
	id, err := m.selectModel(id)
	if err != nil {
		return nil, err
	}

	handle, err := m.inference.GetOrLoadModel(id)
	if err != nil {
		return nil, err
	}

	result, err := m.inference.Detect(ctx, handle, ai.DetectionRequest{Image: image, ConfidenceThreshold: confidence})
	if err != nil {
		return nil, err
	}

	if m.bufferService != nil {
		m.bufferService.Add(result)
	}
	m.publish(result)
	return result, nil
}

func (m *Manager) publish(result *ai.DetectionResult) {
	if m.websocketService == nil {
		return
	}

	classes := result.ClassSet()
	if classes == nil {
		classes = []string{}
	}
	msg, err := json.Marshal(dto.FeedEvent{
		Model:      result.ModelID,
		Confidence: result.Threshold,
		Count:      len(result.Detections),
		Classes:    classes,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		m.logger.Error("Failed to encode feed event: %v", err)
		return
	}
	m.websocketService.Broadcast(msg)
}
