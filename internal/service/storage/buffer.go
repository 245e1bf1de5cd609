package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"detectserver/internal/config"
	"detectserver/internal/dto"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/repository"
	"detectserver/internal/service/ai"

	"github.com/disintegration/imaging"
)

const timestampLayout = "2006-01-02_15-04-05.000"

// BufferService buffers annotated results in memory and periodically flushes
// them to disk and the database.
type BufferService struct {
	imagesDir     string
	limit         int
	interval      time.Duration
	runs          []dto.BufferedRun
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	runRepo       repository.RunRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a new BufferService with the target directory and logger.
func NewBufferService(config *config.Config, logger *logger.Logger, runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) *BufferService {
	return &BufferService{
		imagesDir:     config.ImageDirectory,
		limit:         config.HistoryBufferLimit,
		interval:      time.Duration(config.HistoryFlushInterval) * time.Second,
		runs:          make([]dto.BufferedRun, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		runRepo:       runRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on a ticker until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	if s.interval <= 0 {
		<-ctx.Done()
		s.Flush()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add appends a result to the buffer. It reports false when the model's
// share of the buffer is already full.
func (s *BufferService) Add(result *ai.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[result.ModelID] >= s.limit {
		s.logger.Warning("History buffer full for model %s, dropping result", result.ModelID)
		return false
	}

	s.runs = append(s.runs, dto.BufferedRun{
		Timestamp:  time.Now(),
		Model:      result.ModelID,
		Confidence: result.Threshold,
		Detections: result.Detections,
		Annotated:  result.Annotated,
	})
	s.bufferCount[result.ModelID]++
	s.logger.Info("Buffer size for model %s: %d/%d", result.ModelID, s.bufferCount[result.ModelID], s.limit)
	return true
}

// Pending returns the number of buffered results.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// ImagePath returns the on-disk location of a stored image file name.
func (s *BufferService) ImagePath(filename string) string {
	return filepath.Join(s.imagesDir, filepath.Base(filename))
}

// Flush writes buffered results to disk, records them, and resets the buffer.
// It returns the number of results saved.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for i, run := range s.runs {
		filename := runFilename(run, i)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := imaging.Save(run.Annotated, fullpath); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			continue
		}

		if s.runRepo != nil {
			if err := s.record(run, filename, fullpath); err != nil {
				s.logger.Error("Error saving run to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d runs to disk", savedCount)
	s.runs = s.runs[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

func (s *BufferService) record(run dto.BufferedRun, filename, fullpath string) error {
	var size int64
	if info, err := os.Stat(fullpath); err == nil {
		size = info.Size()
	}

	runID, err := s.runRepo.Insert(&model.Run{
		Filename:       filename,
		Model:          run.Model,
		Confidence:     run.Confidence,
		Timestamp:      run.Timestamp,
		FilePath:       fullpath,
		FileSize:       size,
		DetectionCount: len(run.Detections),
	})
	if err != nil {
		return err
	}

	if s.detectionRepo == nil || len(run.Detections) == 0 {
		return nil
	}

	rows := make([]model.Detection, 0, len(run.Detections))
	for _, d := range run.Detections {
		rows = append(rows, model.Detection{
			RunID:      runID,
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			X1:         d.Box.X1,
			Y1:         d.Box.Y1,
			X2:         d.Box.X2,
			Y2:         d.Box.Y2,
		})
	}
	if err := s.detectionRepo.InsertBatch(rows); err != nil {
		return fmt.Errorf("failed to save detections: %w", err)
	}
	return nil
}

// runFilename builds "<timestamp>_<seq>_<model>_<classes>.png".
func runFilename(run dto.BufferedRun, seq int) string {
	stem := strings.TrimSuffix(run.Model, filepath.Ext(run.Model))

	seen := make(map[string]bool)
	var classes []string
	for _, d := range run.Detections {
		name := sanitize(d.ClassName)
		if name != "" && !seen[name] {
			seen[name] = true
			classes = append(classes, name)
		}
	}

	name := fmt.Sprintf("%s_%02d_%s", run.Timestamp.Format(timestampLayout), seq, sanitize(stem))
	if len(classes) > 0 {
		name += "_" + strings.Join(classes, "-")
	}
	return name + ".png"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
