package response

import (
	"errors"
	"net/http"

	"answersheet/internal/apperrors"
	"answersheet/internal/dto"
	"answersheet/internal/logger"
	"answersheet/internal/reqctx"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// PNG writes an encoded image.
func PNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Error maps err to its status and writes the error body. Server errors are
// logged at error level, client errors at warning level.
func Error(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status := apperrors.StatusCode(err)
	errType := apperrors.TypeOf(err)

	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if log != nil {
		entry := log.WithFields(logger.Fields{
			"request_id": reqctx.GetRequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"error":      err.Error(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Warn("Request rejected")
		}
	}

	JSON(w, status, dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Type:    string(errType),
	})
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewInvalidInputError("request body is not valid JSON", err)
	}
	return nil
}
