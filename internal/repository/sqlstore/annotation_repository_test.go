package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"answersheet/internal/model"
	"answersheet/internal/repository"
)

// ========================================
// Test Setup
// ========================================

func setupTestRepository(t *testing.T) (*AnnotationRepository, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "annotations_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := New("sqlite3", filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}
	return NewAnnotationRepository(db), cleanup
}

func floatPtr(v float64) *float64 {
	return &v
}

// ========================================
// Annotation Repository Tests
// ========================================

func TestAnnotationRepository_InsertAndGet(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	ann := &model.ImageAnnotation{
		Path:    "uploads/abc_sheet.png",
		Size:    model.Size{Width: 800, Height: 600, Depth: 3},
		Objects: []model.Object{},
	}
	if err := repo.Insert(ctx, ann); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(ann.ID) != 26 {
		t.Errorf("Expected a ULID id, got %q", ann.ID)
	}
	if ann.CreatedAt.IsZero() || !ann.CreatedAt.Equal(ann.UpdatedAt) {
		t.Errorf("Expected equal non-zero timestamps, got %v and %v", ann.CreatedAt, ann.UpdatedAt)
	}

	got, err := repo.GetByID(ctx, ann.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Path != ann.Path || got.Size != ann.Size {
		t.Errorf("Unexpected annotation %+v", got)
	}
	if got.Objects == nil || len(got.Objects) != 0 {
		t.Errorf("Expected empty non-nil objects, got %v", got.Objects)
	}
	if !got.CreatedAt.Equal(ann.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", ann.CreatedAt, got.CreatedAt)
	}
}

func TestAnnotationRepository_GetMissing(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()

	_, err := repo.GetByID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAnnotationRepository_ReplaceRoundTrip(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	ann := &model.ImageAnnotation{Path: "sheet.png", Size: model.Size{Width: 100, Height: 100, Depth: 3}}
	if err := repo.Insert(ctx, ann); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ann.Objects = []model.Object{
		{Name: model.LabelConfirmed, BoundingBox: model.Box{XMin: 50, YMin: 10, XMax: 80, YMax: 40}, Confidence: floatPtr(0.97)},
		{Name: model.LabelEmpty, BoundingBox: model.Box{XMin: 5, YMin: 10, XMax: 35, YMax: 40}, Confidence: floatPtr(0.88)},
		{Name: model.LabelUnpredicted, BoundingBox: model.Box{XMin: 90, YMin: 12, XMax: 120, YMax: 42}},
	}
	if err := repo.Replace(ctx, ann); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := repo.GetByID(ctx, ann.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Objects) != len(ann.Objects) {
		t.Fatalf("Expected %d objects, got %d", len(ann.Objects), len(got.Objects))
	}
	for i, want := range ann.Objects {
		o := got.Objects[i]
		if o.Name != want.Name || o.BoundingBox != want.BoundingBox {
			t.Errorf("Object %d: expected %+v, got %+v", i, want, o)
		}
		if (o.Confidence == nil) != (want.Confidence == nil) {
			t.Errorf("Object %d: confidence presence mismatch", i)
		} else if o.Confidence != nil && *o.Confidence != *want.Confidence {
			t.Errorf("Object %d: expected confidence %g, got %g", i, *want.Confidence, *o.Confidence)
		}
	}

	ann.Objects = ann.Objects[:1]
	if err := repo.Replace(ctx, ann); err != nil {
		t.Fatalf("Second replace failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, ann.ID)
	if len(got.Objects) != 1 {
		t.Errorf("Expected replace to drop stale objects, got %d", len(got.Objects))
	}
}

func TestAnnotationRepository_ReplaceMissing(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()

	err := repo.Replace(context.Background(), &model.ImageAnnotation{ID: "missing"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAnnotationRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	ann := &model.ImageAnnotation{
		Path:    "sheet.png",
		Objects: []model.Object{model.NewObject(model.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10})},
	}
	if err := repo.Insert(ctx, ann); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.Delete(ctx, ann.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, ann.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, ann.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAnnotationRepository_ListAndCount(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ann := &model.ImageAnnotation{
			Path:    "sheet.png",
			Objects: []model.Object{model.NewObject(model.Box{XMin: i, YMin: 0, XMax: i + 10, YMax: 10})},
		}
		if err := repo.Insert(ctx, ann); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		ids = append(ids, ann.ID)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 annotations, got %d", count)
	}

	page, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(page))
	}
	if page[0].ID != ids[4] || page[1].ID != ids[3] {
		t.Errorf("Expected newest first, got %s, %s", page[0].ID, page[1].ID)
	}
	for _, ann := range page {
		if len(ann.Objects) != 1 {
			t.Errorf("Expected objects to be loaded for %s", ann.ID)
		}
	}

	page, err = repo.List(ctx, 10, 4)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[0] {
		t.Errorf("Expected the oldest annotation on the last page, got %+v", page)
	}

	page, _ = repo.List(ctx, 10, 20)
	if len(page) != 0 {
		t.Errorf("Expected an empty page past the end, got %d", len(page))
	}
}
