package handler

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"detectserver/internal/dto"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/repository"

	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 24
	historyDateLayout   = "2006-01-02"
)

// parseDay parses a "2006-01-02" query value as a local calendar day.
func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(historyDateLayout, v, time.Local)
}

// GetHistoryHandler returns a filtered, paginated list of stored runs.
func GetHistoryHandler(logger *logger.Logger, runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err := parseDay(q.Get("from"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid from date", "expected YYYY-MM-DD")
			return
		}
		to, err := parseDay(q.Get("to"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid to date", "expected YYYY-MM-DD")
			return
		}

		filters := dto.HistoryFilters{
			Model: q.Get("model"),
			Class: q.Get("class"),
			From:  from,
			To:    to,
			Page:  atoiDefault(q.Get("page"), 1),
			Limit: atoiDefault(q.Get("limit"), defaultHistoryLimit),
		}

		filter := &model.RunFilter{
			Model:     filters.Model,
			ClassName: filters.Class,
			StartDate: filters.From,
			Limit:     filters.Limit,
			Offset:    (filters.Page - 1) * filters.Limit,
		}
		if !filters.To.IsZero() {
			// "to" covers the whole day.
			filter.EndDate = filters.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}

		runs, err := runRepo.GetRecent(filter)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal Server Error", "")
			return
		}

		totalCount, err := runRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting runs: %v", err)
			totalCount = len(runs)
		}

		infos := make([]dto.RunInfo, 0, len(runs))
		for _, run := range runs {
			classes, err := detectionRepo.GetClassNamesByRunID(run.ID)
			if err != nil {
				logger.Error("Error getting classes for run %d: %v", run.ID, err)
			}
			if classes == nil {
				classes = []string{}
			}

			infos = append(infos, dto.RunInfo{
				ID:         run.ID,
				Name:       run.Filename,
				Model:      run.Model,
				Confidence: run.Confidence,
				Date:       run.Timestamp.Local(),
				TimeOfDay:  run.Timestamp.Local(),
				Count:      run.DetectionCount,
				Classes:    classes,
			})
		}

		allClasses, err := detectionRepo.GetAllClassNames()
		if err != nil {
			logger.Error("Error getting class names: %v", err)
		}
		if allClasses == nil {
			allClasses = []string{}
		}

		writeJSON(w, http.StatusOK, dto.HistoryData{
			Runs:        infos,
			Classes:     allClasses,
			Length:      totalCount,
			TotalPages:  (totalCount + filters.Limit - 1) / filters.Limit,
			CurrentPage: filters.Page,
			Limit:       filters.Limit,
		}, logger)
	}
}

func lookupRun(w http.ResponseWriter, r *http.Request, logger *logger.Logger, runRepo repository.RunRepository) *model.Run {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid run id", "")
		return nil
	}

	run, err := runRepo.GetByID(id)
	if err != nil {
		logger.Error("Error loading run %d: %v", id, err)
		WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal Server Error", "")
		return nil
	}
	if run == nil {
		WriteError(w, http.StatusNotFound, CodeNotFound, "Run not found", "")
		return nil
	}
	return run
}

// GetRunHandler returns one stored run with its detections.
func GetRunHandler(logger *logger.Logger, runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		detections, err := detectionRepo.GetByRunID(run.ID)
		if err != nil {
			logger.Error("Error loading detections for run %d: %v", run.ID, err)
			WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal Server Error", "")
			return
		}
		if detections == nil {
			detections = []model.Detection{}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"run":        run,
			"detections": detections,
		}, logger)
	}
}

// ViewRunImageHandler serves the annotated image stored for a run.
func ViewRunImageHandler(logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		if _, err := os.Stat(run.FilePath); err != nil {
			WriteError(w, http.StatusNotFound, CodeNotFound, "Image file not found", run.Filename)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, run.FilePath)
	}
}

// DeleteRunHandler removes a run's image from disk and its records from the database.
func DeleteRunHandler(logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		if err := os.Remove(run.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", run.FilePath, err)
		}

		if err := runRepo.Delete(run.ID); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal Server Error", "")
			return
		}

		logger.Info("Deleted run %d (%s)", run.ID, run.Filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": run.Filename}, logger)
	}
}
