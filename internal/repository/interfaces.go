package repository

import (
	"context"
	"errors"

	"answersheet/internal/model"
)

// ErrNotFound is returned when no annotation has the requested id.
var ErrNotFound = errors.New("annotation not found")

// AnnotationRepository defines the interface for image annotation storage.
type AnnotationRepository interface {
	// Create operations
	Insert(ctx context.Context, ann *model.ImageAnnotation) error

	// Read operations
	GetByID(ctx context.Context, id string) (*model.ImageAnnotation, error)
	List(ctx context.Context, limit, offset int) ([]model.ImageAnnotation, error)
	Count(ctx context.Context) (int, error)

	// Update operations
	Replace(ctx context.Context, ann *model.ImageAnnotation) error

	// Delete operations
	Delete(ctx context.Context, id string) error
}
