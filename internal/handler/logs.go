package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"answersheet/internal/apperrors"
	"answersheet/internal/dto"
	"answersheet/internal/logger"
	"answersheet/internal/response"
)

// ShowLogsHandler serves one level file as text/plain.
func ShowLogsHandler(logger *logger.Logger, fileName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		serveLogFile(w, r, logger.Dir(), fileName)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates one level file.
func ClearLogsHandler(logger *logger.Logger, fileName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := logger.CleanLogs(fileName); err != nil {
			response.Error(w, r, logger, apperrors.NewInternalError("failed to clear "+fileName, err))
			return
		}
		response.JSON(w, http.StatusOK, dto.MessageResponse{Message: "Log file " + fileName + " cleared"})
	}
}
