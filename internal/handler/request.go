package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"answersheet/internal/apperrors"
)

const multipartMemory = 32 << 20

// requireMethod rejects requests with any other method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func imageID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("image_id")
	if id == "" {
		return "", apperrors.NewInvalidInputError("image_id is required", nil)
	}
	return id, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s must be a number", name), err)
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s must be an integer", name), err)
	}
	return i, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, apperrors.NewInvalidInputError(fmt.Sprintf("%s must be true or false", name), err)
	}
	return b, nil
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseUpload parses a multipart body of at most maxSize bytes.
func parseUpload(w http.ResponseWriter, r *http.Request, maxSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return apperrors.NewInvalidInputError("request must be multipart/form-data within the upload limit", err)
	}
	return nil
}

// uploadedFile returns the single file sent in field.
func uploadedFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", apperrors.NewInvalidInputError(fmt.Sprintf("file field %q is required", field), err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperrors.NewInvalidInputError(fmt.Sprintf("failed to read %q", field), err)
	}
	return data, header.Filename, nil
}

// uploadedFiles returns every file sent in field, possibly none.
func uploadedFiles(r *http.Request, field string) ([][]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File[field]
	files := make([][]byte, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("failed to read %q", h.Filename), err)
		}
		files = append(files, data)
	}
	return files, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
