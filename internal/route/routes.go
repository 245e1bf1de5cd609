package route

import (
	"net/http"

	"detectserver/internal/config"
	"detectserver/internal/handler"
	"detectserver/internal/logger"
	"detectserver/internal/middleware"
	"detectserver/internal/repository"
	"detectserver/internal/service"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the API, history, feed and log endpoints and wraps
// the router with request logging and authentication.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Model picker and detection
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", handler.ListModelsHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}/load", handler.LoadModelHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/detect", handler.DetectHandler(manager, cfg, logger)).Methods(http.MethodPost)
	api.HandleFunc("/feed", handler.FeedWebsocketHandler(manager, logger)).Methods(http.MethodGet)

	// History
	if runRepo != nil && detectionRepo != nil {
		api.HandleFunc("/history", handler.GetHistoryHandler(logger, runRepo, detectionRepo)).Methods(http.MethodGet)
		api.HandleFunc("/history/{id:[0-9]+}", handler.GetRunHandler(logger, runRepo, detectionRepo)).Methods(http.MethodGet)
		api.HandleFunc("/history/{id:[0-9]+}", handler.DeleteRunHandler(logger, runRepo)).Methods(http.MethodDelete)
		api.HandleFunc("/history/{id:[0-9]+}/image", handler.ViewRunImageHandler(logger, runRepo)).Methods(http.MethodGet)
	}

	// Log endpoints
	router.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Auth endpoints
	router.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger)).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", handler.LogoutHandler).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusNotFound, handler.CodeNotFound, "Not found", r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusMethodNotAllowed, handler.CodeInvalidRequest, "Method not allowed", r.Method)
	})

	router.Use(middleware.RequestLogger(logger))
	return middleware.AuthMiddleware(cfg.APIKey)(router)
}
