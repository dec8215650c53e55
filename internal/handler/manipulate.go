package handler

import (
	"context"
	"net/http"

	"answersheet/internal/config"
	"answersheet/internal/logger"
	"answersheet/internal/response"
	"answersheet/internal/service"
)

// FindBoxesHandler handles POST /find_boxes/?image_id=&threshold= with
// multipart "box_images" templates.
func FindBoxesHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		threshold, err := floatParam(r, "threshold", cfg.MatchThreshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if err := parseUpload(w, r, cfg.MaxUploadSize); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		templates, err := uploadedFiles(r, "box_images")
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		ann, err := manager.FindBoxes(r.Context(), id, templates, threshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, ann)
	}
}

// FindAnswersHandler handles POST /find_answers/?image_id=.
func FindAnswersHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		ann, err := manager.FindAnswers(r.Context(), id)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, ann)
	}
}

// QuestionsAndAnswersHandler handles GET /questions_and_answers/?image_id=&y_threshold=.
// Questions are keyed by number in ascending numeric order.
func QuestionsAndAnswersHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		yThreshold, err := intParam(r, "y_threshold", cfg.RowYThreshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		answers, err := manager.QuestionsAndAnswers(r.Context(), id, yThreshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, answers)
	}
}

type detectFunc func(ctx context.Context, image []byte, templates [][]byte, threshold float64) (interface{}, error)

// statelessHandler reads "test_image" and "box_images", runs fn and writes
// its result as JSON, or as PNG when it returns bytes.
func statelessHandler(fn detectFunc, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		threshold, err := floatParam(r, "threshold", cfg.MatchThreshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if err := parseUpload(w, r, cfg.MaxUploadSize); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		image, _, err := uploadedFile(r, "test_image")
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		templates, err := uploadedFiles(r, "box_images")
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		result, err := fn(r.Context(), image, templates, threshold)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		if png, ok := result.([]byte); ok {
			response.PNG(w, png)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

// DetectBoxesHandler handles POST /detect_boxes/.
func DetectBoxesHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return statelessHandler(func(ctx context.Context, image []byte, templates [][]byte, threshold float64) (interface{}, error) {
		return manager.DetectBoxes(ctx, image, templates, threshold)
	}, cfg, logger)
}

// DetectAnswersHandler handles POST /detect_answers/.
func DetectAnswersHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return statelessHandler(func(ctx context.Context, image []byte, templates [][]byte, threshold float64) (interface{}, error) {
		return manager.DetectAnswers(ctx, image, templates, threshold)
	}, cfg, logger)
}

// MarkBoxesHandler handles POST /mark_boxes/.
func MarkBoxesHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return statelessHandler(func(ctx context.Context, image []byte, templates [][]byte, threshold float64) (interface{}, error) {
		return manager.MarkBoxes(ctx, image, templates, threshold)
	}, cfg, logger)
}

// MarkAnswersHandler handles POST /mark_answers/.
func MarkAnswersHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return statelessHandler(func(ctx context.Context, image []byte, templates [][]byte, threshold float64) (interface{}, error) {
		return manager.MarkAnswers(ctx, image, templates, threshold)
	}, cfg, logger)
}
