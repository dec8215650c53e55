package dto

import "answersheet/internal/model"

// AnnotationPage is one page of stored annotations, newest first.
type AnnotationPage struct {
	Annotations []model.ImageAnnotation `json:"annotations"`
	Total       int                     `json:"total"`
	TotalPages  int                     `json:"total_pages"`
	CurrentPage int                     `json:"current_page"`
	PageSize    int                     `json:"page_size"`
}
