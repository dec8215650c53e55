package handler

import (
	"net/http"
	"time"

	"answersheet/internal/dto"
	"answersheet/internal/response"
)

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Time: time.Now().UTC()})
}
