package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"answersheet/internal/apperrors"
	"answersheet/internal/dto"
	"answersheet/internal/logger"
	"answersheet/internal/model"
	"answersheet/internal/repository"
	"answersheet/internal/service/ai"
	"answersheet/internal/service/lock"
	"answersheet/internal/service/websocket"
	"answersheet/internal/storage"

	"github.com/go-playground/validator/v10"
)

// EventPublisher receives annotation change events.
type EventPublisher interface {
	Publish(event websocket.Event)
}

// Options carries the tuning knobs of the CV pipeline.
type Options struct {
	Classify ai.ClassifyOptions
	Dedup    ai.DedupStrategy
}

// Manager runs every annotation operation. Read-modify-write sequences on
// one annotation are serialized through the locker.
type Manager struct {
	repo      repository.AnnotationRepository
	files     storage.FileStore
	model     ai.Model
	locker    lock.Locker
	events    EventPublisher
	opts      Options
	validator *validator.Validate
	logger    *logger.Logger
}

func NewManager(repo repository.AnnotationRepository, files storage.FileStore, model ai.Model,
	locker lock.Locker, events EventPublisher, opts Options, logger *logger.Logger) *Manager {
	return &Manager{
		repo:      repo,
		files:     files,
		model:     model,
		locker:    locker,
		events:    events,
		opts:      opts,
		validator: validator.New(),
		logger:    logger,
	}
}

// ========================================
// Manage
// ========================================

// SaveImage stores an uploaded sheet and creates its annotation with no objects.
func (m *Manager) SaveImage(ctx context.Context, filename string, data []byte) (*model.ImageAnnotation, error) {
	img, err := ai.DecodeColor(data)
	if err != nil {
		return nil, err
	}
	size := ai.SizeOf(img)
	img.Close()

	path, err := m.files.Save(ctx, filename, data)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to store image", err)
	}

	ann := &model.ImageAnnotation{
		Path:    path,
		Size:    size,
		Objects: []model.Object{},
	}
	if err := m.repo.Insert(ctx, ann); err != nil {
		if delErr := m.files.Delete(ctx, path); delErr != nil {
			m.logger.Warning("Failed to remove orphaned file %s: %v", path, delErr)
		}
		return nil, apperrors.NewInternalError("failed to save annotation", err)
	}

	m.logger.Info("Stored image %s as %s (%dx%d)", filename, ann.ID, size.Width, size.Height)
	m.publish(websocket.EventAnnotationCreated, ann.ID)
	return ann, nil
}

// GetAnnotation returns the stored annotation.
func (m *Manager) GetAnnotation(ctx context.Context, id string) (*model.ImageAnnotation, error) {
	return m.get(ctx, id)
}

// ListAnnotations returns one page of annotations. page is 1-based.
func (m *Manager) ListAnnotations(ctx context.Context, page, limit int) (*dto.AnnotationPage, error) {
	if page < 1 || limit < 1 {
		return nil, apperrors.NewInvalidInputError("page and limit must be positive", nil)
	}

	total, err := m.repo.Count(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count annotations", err)
	}

	annotations, err := m.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list annotations", err)
	}

	return &dto.AnnotationPage{
		Annotations: annotations,
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		PageSize:    limit,
	}, nil
}

// RenderImage returns the stored image as PNG, optionally with its objects drawn.
func (m *Manager) RenderImage(ctx context.Context, id string, showAnnotations bool) ([]byte, error) {
	ann, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	img, err := m.loadImage(ctx, ann)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if showAnnotations {
		if err := ai.DrawObjects(&img, ann.Objects); err != nil {
			return nil, apperrors.NewInternalError("failed to draw annotations", err)
		}
	}
	return encodePNG(img)
}

// DeleteImage removes the annotation and its backing file.
func (m *Manager) DeleteImage(ctx context.Context, id string) error {
	return m.withLock(ctx, id, func() error {
		ann, err := m.get(ctx, id)
		if err != nil {
			return err
		}

		if err := m.repo.Delete(ctx, id); err != nil {
			return m.storeError(id, err)
		}
		if err := m.files.Delete(ctx, ann.Path); err != nil {
			m.logger.Warning("Failed to delete file %s of %s: %v", ann.Path, id, err)
		}

		m.logger.Info("Deleted image %s", id)
		m.publish(websocket.EventAnnotationDeleted, id)
		return nil
	})
}

// UpdateObjects validates objects and replaces the annotation's list with them.
func (m *Manager) UpdateObjects(ctx context.Context, id string, objects []model.Object) (*model.ImageAnnotation, error) {
	if err := m.ValidateObjects(objects); err != nil {
		return nil, err
	}
	return m.replaceObjects(ctx, id, func(ann *model.ImageAnnotation) ([]model.Object, error) {
		return model.Normalize(objects), nil
	})
}

// ValidateObjects checks client supplied objects.
func (m *Manager) ValidateObjects(objects []model.Object) error {
	var problems []string
	for i := range objects {
		err := m.validator.Struct(objects[i])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewValidationError(fmt.Sprintf("objects[%d] is invalid", i), err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("objects[%d].%s failed on %s", i, fe.Namespace(), fe.Tag()))
		}
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// ========================================
// Manipulate
// ========================================

// FindBoxes locates answer boxes on the stored image and replaces the
// annotation's objects with unpredicted boxes.
func (m *Manager) FindBoxes(ctx context.Context, id string, templates [][]byte, threshold float64) (*model.ImageAnnotation, error) {
	tmpls, err := ai.DecodeTemplates(templates)
	if err != nil {
		return nil, err
	}
	defer ai.CloseAll(tmpls)

	return m.replaceObjects(ctx, id, func(ann *model.ImageAnnotation) ([]model.Object, error) {
		img, err := m.loadImage(ctx, ann)
		if err != nil {
			return nil, err
		}
		defer img.Close()

		boxes, err := m.locate(img, tmpls, threshold)
		if err != nil {
			return nil, err
		}
		m.logger.Info("Found %d boxes on %s", len(boxes), id)
		return unpredicted(boxes), nil
	})
}

// FindAnswers classifies the stored boxes. An annotation without objects is
// returned unchanged.
func (m *Manager) FindAnswers(ctx context.Context, id string) (*model.ImageAnnotation, error) {
	var result *model.ImageAnnotation

	err := m.withLock(ctx, id, func() error {
		ann, err := m.get(ctx, id)
		if err != nil {
			return err
		}
		if len(ann.Objects) == 0 {
			result = ann
			return nil
		}

		img, err := m.loadImage(ctx, ann)
		if err != nil {
			return err
		}
		defer img.Close()

		objects, err := m.classify(img, ann.Boxes())
		if err != nil {
			return err
		}

		ann.Objects = objects
		if err := m.repo.Replace(ctx, ann); err != nil {
			return m.storeError(id, err)
		}
		m.logger.Info("Classified %d boxes on %s", len(objects), id)
		m.publish(websocket.EventAnnotationUpdated, id)
		result = ann
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QuestionsAndAnswers groups the stored objects into rows and derives one
// answer per row.
func (m *Manager) QuestionsAndAnswers(ctx context.Context, id string, yThreshold int) (ai.Answers, error) {
	if yThreshold < 0 {
		return nil, apperrors.NewInvalidInputError("y_threshold must not be negative", nil)
	}

	ann, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ai.DeriveAnswers(ai.SortIntoRows(ann.Objects, yThreshold)), nil
}

// ========================================
// Stateless
// ========================================

// DetectBoxes locates boxes on an uploaded sheet without storing anything.
func (m *Manager) DetectBoxes(ctx context.Context, image []byte, templates [][]byte, threshold float64) (*model.ImageAnnotation, error) {
	return m.detect(image, templates, threshold, false)
}

// DetectAnswers locates and classifies boxes on an uploaded sheet.
func (m *Manager) DetectAnswers(ctx context.Context, image []byte, templates [][]byte, threshold float64) (*model.ImageAnnotation, error) {
	return m.detect(image, templates, threshold, true)
}

// MarkBoxes returns the uploaded sheet as PNG with found boxes outlined in red.
func (m *Manager) MarkBoxes(ctx context.Context, image []byte, templates [][]byte, threshold float64) ([]byte, error) {
	return m.mark(image, templates, threshold, false)
}

// MarkAnswers returns the uploaded sheet as PNG with boxes colored by label.
func (m *Manager) MarkAnswers(ctx context.Context, image []byte, templates [][]byte, threshold float64) ([]byte, error) {
	return m.mark(image, templates, threshold, true)
}

func (m *Manager) detect(image []byte, templates [][]byte, threshold float64, classify bool) (*model.ImageAnnotation, error) {
	img, err := ai.DecodeColor(image)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	objects, err := m.detectObjects(img, templates, threshold, classify)
	if err != nil {
		return nil, err
	}
	return &model.ImageAnnotation{Size: ai.SizeOf(img), Objects: objects}, nil
}

func (m *Manager) mark(image []byte, templates [][]byte, threshold float64, classify bool) ([]byte, error) {
	img, err := ai.DecodeColor(image)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	objects, err := m.detectObjects(img, templates, threshold, classify)
	if err != nil {
		return nil, err
	}

	if classify {
		err = ai.DrawObjects(&img, objects)
	} else {
		err = ai.DrawBoxes(&img, (&model.ImageAnnotation{Objects: objects}).Boxes(), ai.ColorUnpredicted)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to draw boxes", err)
	}
	return encodePNG(img)
}
