package handler

import (
	"net/http"

	"answersheet/internal/config"
	"answersheet/internal/dto"
	"answersheet/internal/logger"
	"answersheet/internal/model"
	"answersheet/internal/response"
	"answersheet/internal/service"
)

// SaveImageHandler handles POST /save_image with a multipart "image" file.
func SaveImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := parseUpload(w, r, cfg.MaxUploadSize); err != nil {
			response.Error(w, r, logger, err)
			return
		}

		data, filename, err := uploadedFile(r, "image")
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		ann, err := manager.SaveImage(r.Context(), filename, data)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, ann)
	}
}

// GetAnnotationHandler handles GET /image_annotation/?image_id=.
func GetAnnotationHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		ann, err := manager.GetAnnotation(r.Context(), id)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, ann)
	}
}

// ListAnnotationsHandler handles GET /image_annotations/?page=&limit=.
func ListAnnotationsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		result, err := manager.ListAnnotations(r.Context(), page, limit)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}

// ShowImageHandler handles GET /show_image/?image_id=&show_annotations=.
// Annotations are drawn unless show_annotations=false.
func ShowImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		show, err := boolParam(r, "show_annotations", true)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		png, err := manager.RenderImage(r.Context(), id, show)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.PNG(w, png)
	}
}

// DeleteImageHandler handles DELETE /delete_image/?image_id=.
func DeleteImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodDelete) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		if err := manager.DeleteImage(r.Context(), id); err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, dto.MessageResponse{Message: "Image deleted"})
	}
}

// UpdateImageHandler handles PUT /update_image/?image_id= with a JSON list of objects.
func UpdateImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPut) {
			return
		}
		id, err := imageID(r)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		var objects []model.Object
		if err := response.Decode(r, &objects); err != nil {
			response.Error(w, r, logger, err)
			return
		}

		ann, err := manager.UpdateObjects(r.Context(), id, objects)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, ann)
	}
}
