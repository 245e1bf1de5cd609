package handler

import (
	"net/http"

	"detectserver/internal/logger"
	"detectserver/internal/service"

	"github.com/gorilla/mux"
)

// ListModelsHandler returns the selectable models and the confidence defaults.
func ListModelsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Models(), logger)
	}
}

// LoadModelHandler loads the model named in the path so the first detection
// does not pay for it.
func LoadModelHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		handle, err := manager.Preload(id)
		if err != nil {
			writeServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "loaded",
			"model":   handle.ID,
			"classes": len(handle.ClassNames),
		}, logger)
	}
}
