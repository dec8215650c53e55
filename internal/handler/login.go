package handler

import (
	"net/http"
	"time"

	"answersheet/internal/apperrors"
	"answersheet/internal/auth"
	"answersheet/internal/dto"
	"answersheet/internal/logger"
	"answersheet/internal/response"

	"github.com/go-playground/validator/v10"
)

// LoginHandler handles POST /auth/login by checking the admin password and
// issuing a bearer token.
func LoginHandler(issuer *auth.Issuer, logger *logger.Logger) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if issuer == nil {
			response.Error(w, r, logger, apperrors.NewNotFoundError("authentication is disabled", nil))
			return
		}

		var req dto.LoginRequest
		if err := response.Decode(r, &req); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			response.Error(w, r, logger, apperrors.NewValidationError("password is required", err))
			return
		}

		if !issuer.CheckPassword(req.Password) {
			response.Error(w, r, logger, apperrors.NewUnauthorizedError("invalid password", nil))
			return
		}

		token, expiresAt, err := issuer.Sign(time.Now())
		if err != nil {
			response.Error(w, r, logger, apperrors.NewInternalError("failed to issue token", err))
			return
		}

		logger.Info("Admin logged in")
		response.JSON(w, http.StatusOK, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
	}
}
