package service

import (
	"context"
	"errors"
	"time"

	"answersheet/internal/apperrors"
	"answersheet/internal/model"
	"answersheet/internal/repository"
	"answersheet/internal/service/ai"
	"answersheet/internal/service/websocket"

	"gocv.io/x/gocv"
)

func (m *Manager) get(ctx context.Context, id string) (*model.ImageAnnotation, error) {
	if id == "" {
		return nil, apperrors.NewInvalidInputError("image_id is required", nil)
	}

	ann, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, m.storeError(id, err)
	}
	return ann, nil
}

// replaceObjects swaps the object list of annotation id for the output of
// build inside the annotation's critical section.
func (m *Manager) replaceObjects(ctx context.Context, id string,
	build func(ann *model.ImageAnnotation) ([]model.Object, error)) (*model.ImageAnnotation, error) {
	var result *model.ImageAnnotation

	err := m.withLock(ctx, id, func() error {
		ann, err := m.get(ctx, id)
		if err != nil {
			return err
		}

		objects, err := build(ann)
		if err != nil {
			return err
		}

		ann.Objects = objects
		if err := m.repo.Replace(ctx, ann); err != nil {
			return m.storeError(id, err)
		}
		m.publish(websocket.EventAnnotationUpdated, id)
		result = ann
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) withLock(ctx context.Context, id string, fn func() error) error {
	if id == "" {
		return apperrors.NewInvalidInputError("image_id is required", nil)
	}

	unlock, err := m.locker.Lock(ctx, "annotation:"+id)
	if err != nil {
		return apperrors.NewInternalError("failed to lock annotation", err)
	}
	defer unlock()

	return fn()
}

func (m *Manager) loadImage(ctx context.Context, ann *model.ImageAnnotation) (gocv.Mat, error) {
	data, err := m.files.Load(ctx, ann.Path)
	if err != nil {
		return gocv.Mat{}, apperrors.NewInternalError("failed to load stored image", err)
	}

	img, err := ai.DecodeColor(data)
	if err != nil {
		return gocv.Mat{}, apperrors.NewInternalError("stored image could not be decoded", err)
	}
	return img, nil
}

func (m *Manager) detectObjects(img gocv.Mat, templates [][]byte, threshold float64, classify bool) ([]model.Object, error) {
	tmpls, err := ai.DecodeTemplates(templates)
	if err != nil {
		return nil, err
	}
	defer ai.CloseAll(tmpls)

	boxes, err := m.locate(img, tmpls, threshold)
	if err != nil {
		return nil, err
	}
	if !classify {
		return unpredicted(boxes), nil
	}
	return m.classify(img, boxes)
}

func (m *Manager) locate(img gocv.Mat, templates []gocv.Mat, threshold float64) ([]model.Box, error) {
	return ai.LocateBoxes(img, templates, ai.LocateOptions{
		Threshold: threshold,
		Strategy:  m.opts.Dedup,
	})
}

func (m *Manager) classify(img gocv.Mat, boxes []model.Box) ([]model.Object, error) {
	start := time.Now()
	labels, confidences, err := ai.ClassifyBoxes(img, boxes, m.model, m.opts.Classify)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("Classified %d boxes in %s", len(boxes), time.Since(start))

	objects := make([]model.Object, len(boxes))
	for i, box := range boxes {
		objects[i] = model.NewLabeledObject(box, labels[i], confidences[i])
	}
	return objects, nil
}

func (m *Manager) storeError(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("image "+id+" not found", err)
	}
	return apperrors.NewInternalError("annotation store failure", err)
}

func (m *Manager) publish(eventType, id string) {
	if m.events == nil {
		return
	}
	m.events.Publish(websocket.Event{Type: eventType, ImageID: id, Time: time.Now().UTC()})
}

func unpredicted(boxes []model.Box) []model.Object {
	objects := make([]model.Object, len(boxes))
	for i, box := range boxes {
		objects[i] = model.NewObject(box)
	}
	return objects
}

func encodePNG(img gocv.Mat) ([]byte, error) {
	data, err := ai.EncodePNG(img)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode image", err)
	}
	return data, nil
}
