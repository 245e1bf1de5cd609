package repository

import (
	"detectserver/internal/model"
)

// RunRepository defines the interface for detection run operations.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Run, error)
	GetRecent(filter *model.RunFilter) ([]model.Run, error)
	GetTotalCount(filter *model.RunFilter) (int, error)

	// Delete operations
	Delete(id int64) error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByRunID(runID int64) ([]model.Detection, error)
	GetClassNamesByRunID(runID int64) ([]string, error)
	GetAllClassNames() ([]string, error)
}
