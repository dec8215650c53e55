package route

import (
	"net/http"
	"strings"

	"answersheet/internal/auth"
	"answersheet/internal/config"
	"answersheet/internal/handler"
	"answersheet/internal/logger"
	"answersheet/internal/middleware"
	"answersheet/internal/service"
	"answersheet/internal/service/websocket"
)

// handle registers h for path with and without the trailing slash.
func handle(mux *http.ServeMux, path string, h http.Handler) {
	path = strings.TrimSuffix(path, "/")
	mux.Handle(path, h)
	mux.Handle(path+"/", h)
}

// SetupRoutes registers the API endpoints and wraps the mux with request id,
// access logging, CORS and authentication middleware.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, issuer *auth.Issuer,
	cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	// Manage
	handle(mux, "/save_image", handler.SaveImageHandler(manager, cfg, log))
	handle(mux, "/image_annotation", handler.GetAnnotationHandler(manager, log))
	handle(mux, "/image_annotations", handler.ListAnnotationsHandler(manager, log))
	handle(mux, "/show_image", handler.ShowImageHandler(manager, log))
	handle(mux, "/delete_image", handler.DeleteImageHandler(manager, log))
	handle(mux, "/update_image", handler.UpdateImageHandler(manager, log))

	// Manipulate
	handle(mux, "/find_boxes", limit(handler.FindBoxesHandler(manager, cfg, log)))
	handle(mux, "/find_answers", limit(handler.FindAnswersHandler(manager, log)))
	handle(mux, "/questions_and_answers", handler.QuestionsAndAnswersHandler(manager, cfg, log))

	// Stateless
	handle(mux, "/detect_boxes", limit(handler.DetectBoxesHandler(manager, cfg, log)))
	handle(mux, "/detect_answers", limit(handler.DetectAnswersHandler(manager, cfg, log)))
	handle(mux, "/mark_boxes", limit(handler.MarkBoxesHandler(manager, cfg, log)))
	handle(mux, "/mark_answers", limit(handler.MarkAnswersHandler(manager, cfg, log)))

	// Events
	mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(hub, cfg.AllowedOrigins, log))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	// Auth and health
	mux.HandleFunc("/auth/login", handler.LoginHandler(issuer, log))
	mux.HandleFunc("/health", handler.HealthHandler)

	// Apply middleware
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Auth(issuer, log),
	)
}
