package service

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"answersheet/internal/apperrors"
	"answersheet/internal/logger"
	"answersheet/internal/model"
	"answersheet/internal/repository/sqlstore"
	"answersheet/internal/service/ai"
	"answersheet/internal/service/lock"
	"answersheet/internal/service/websocket"
	"answersheet/internal/storage"

	"gocv.io/x/gocv"
)

// ========================================
// Test Setup
// ========================================

type sequenceModel struct {
	outputs [][]float32
	calls   int
}

func (s *sequenceModel) Predict(crop gocv.Mat) ([]float32, error) {
	out := s.outputs[s.calls%len(s.outputs)]
	s.calls++
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	confirmed  = []float32{0.9, 0.05, 0.05}
	crossedOut = []float32{0.1, 0.8, 0.1}
	empty      = []float32{0.05, 0.05, 0.9}
	black      = color.RGBA{0, 0, 0, 0}
)

func setupTestManager(t *testing.T, m ai.Model) (*Manager, *recordingPublisher, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "manager_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := sqlstore.New("sqlite3", filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	files, err := storage.NewDiskStore(filepath.Join(tempDir, "uploads"))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	log := logger.NewDiscard(filepath.Join(tempDir, "logs"))
	events := &recordingPublisher{}
	manager := NewManager(sqlstore.NewAnnotationRepository(db), files, m, lock.NewLocalLocker(), events,
		Options{Classify: ai.ClassifyOptions{Mode: ai.ModeMultiClass}, Dedup: ai.DedupScan}, log)

	cleanup := func() {
		log.Close()
		db.Close()
		os.RemoveAll(tempDir)
	}
	return manager, events, cleanup
}

// sheetPNG renders two rows of three outlined boxes.
func sheetPNG(t *testing.T) []byte {
	t.Helper()
	page := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 400, 700, gocv.MatTypeCV8UC3)
	defer page.Close()

	for _, y := range []int{50, 200} {
		for _, x := range []int{50, 200, 350} {
			if err := gocv.Rectangle(&page, image.Rect(x+5, y+5, x+35, y+35), black, 2); err != nil {
				t.Fatalf("Failed to draw box: %v", err)
			}
		}
	}

	data, err := ai.EncodePNG(page)
	if err != nil {
		t.Fatalf("Failed to encode sheet: %v", err)
	}
	return data
}

func templatePNG(t *testing.T) []byte {
	t.Helper()
	tmpl := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 40, 40, gocv.MatTypeCV8UC3)
	defer tmpl.Close()

	if err := gocv.Rectangle(&tmpl, image.Rect(5, 5, 35, 35), black, 2); err != nil {
		t.Fatalf("Failed to draw template: %v", err)
	}
	data, err := ai.EncodePNG(tmpl)
	if err != nil {
		t.Fatalf("Failed to encode template: %v", err)
	}
	return data
}

// ========================================
// Manager Tests
// ========================================

func TestManager_FullWorkflow(t *testing.T) {
	fake := &sequenceModel{outputs: [][]float32{empty, confirmed, empty, empty, crossedOut, confirmed}}
	manager, events, cleanup := setupTestManager(t, fake)
	defer cleanup()
	ctx := context.Background()

	ann, err := manager.SaveImage(ctx, "sheet.png", sheetPNG(t))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if ann.Size != (model.Size{Width: 700, Height: 400, Depth: 3}) {
		t.Errorf("Unexpected size %+v", ann.Size)
	}
	if len(ann.Objects) != 0 {
		t.Errorf("Expected no objects on a fresh upload, got %d", len(ann.Objects))
	}

	ann, err = manager.FindBoxes(ctx, ann.ID, [][]byte{templatePNG(t)}, 0.95)
	if err != nil {
		t.Fatalf("FindBoxes failed: %v", err)
	}
	if len(ann.Objects) != 6 {
		t.Fatalf("Expected 6 boxes, got %d", len(ann.Objects))
	}
	for _, obj := range ann.Objects {
		if obj.Name != model.LabelUnpredicted || obj.Confidence != nil {
			t.Errorf("Expected unpredicted box without confidence, got %+v", obj)
		}
	}

	ann, err = manager.FindAnswers(ctx, ann.ID)
	if err != nil {
		t.Fatalf("FindAnswers failed: %v", err)
	}
	for _, obj := range ann.Objects {
		if obj.Confidence == nil {
			t.Errorf("Expected classified box to carry a confidence: %+v", obj)
		}
	}

	answers, err := manager.QuestionsAndAnswers(ctx, ann.ID, 20)
	if err != nil {
		t.Fatalf("QuestionsAndAnswers failed: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(answers))
	}
	if answers[1] == nil || *answers[1] != "B" {
		t.Errorf("Expected B for question 1, got %v", answers[1])
	}
	if answers[2] == nil || *answers[2] != "C" {
		t.Errorf("Expected C for question 2, got %v", answers[2])
	}

	png, err := manager.RenderImage(ctx, ann.ID, true)
	if err != nil {
		t.Fatalf("RenderImage failed: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("Expected PNG output")
	}

	if err := manager.DeleteImage(ctx, ann.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if _, err := manager.GetAnnotation(ctx, ann.ID); !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}

	want := []string{
		websocket.EventAnnotationCreated,
		websocket.EventAnnotationUpdated,
		websocket.EventAnnotationUpdated,
		websocket.EventAnnotationDeleted,
	}
	got := events.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestManager_FindAnswersWithoutObjects(t *testing.T) {
	fake := &sequenceModel{outputs: [][]float32{confirmed}}
	manager, _, cleanup := setupTestManager(t, fake)
	defer cleanup()
	ctx := context.Background()

	ann, err := manager.SaveImage(ctx, "sheet.png", sheetPNG(t))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	got, err := manager.FindAnswers(ctx, ann.ID)
	if err != nil {
		t.Fatalf("FindAnswers failed: %v", err)
	}
	if len(got.Objects) != 0 || fake.calls != 0 {
		t.Errorf("Expected unchanged annotation and no inference, got %d objects and %d calls", len(got.Objects), fake.calls)
	}

	answers, err := manager.QuestionsAndAnswers(ctx, ann.ID, 20)
	if err != nil {
		t.Fatalf("QuestionsAndAnswers failed: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("Expected empty answers, got %v", answers)
	}
}

func TestManager_UpdateObjects(t *testing.T) {
	manager, _, cleanup := setupTestManager(t, &sequenceModel{outputs: [][]float32{empty}})
	defer cleanup()
	ctx := context.Background()

	ann, err := manager.SaveImage(ctx, "sheet.png", sheetPNG(t))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	objects := []model.Object{
		{BoundingBox: model.Box{XMin: 10, YMin: 10, XMax: 40, YMax: 40}},
		{Name: model.LabelConfirmed, BoundingBox: model.Box{XMin: 60, YMin: 10, XMax: 90, YMax: 40}},
	}
	updated, err := manager.UpdateObjects(ctx, ann.ID, objects)
	if err != nil {
		t.Fatalf("UpdateObjects failed: %v", err)
	}
	if updated.Objects[0].Name != model.LabelUnpredicted {
		t.Errorf("Expected missing label to default to unpredicted, got %s", updated.Objects[0].Name)
	}

	bad := []model.Object{{Name: "maybe", BoundingBox: model.Box{XMin: 10, YMin: 10, XMax: 5, YMax: 40}}}
	if _, err := manager.UpdateObjects(ctx, ann.ID, bad); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}

	if _, err := manager.UpdateObjects(ctx, "missing", objects); !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestManager_RejectsBadInput(t *testing.T) {
	manager, _, cleanup := setupTestManager(t, &sequenceModel{outputs: [][]float32{empty}})
	defer cleanup()
	ctx := context.Background()

	if _, err := manager.SaveImage(ctx, "notes.txt", []byte("hello")); !apperrors.IsType(err, apperrors.ErrorTypeInvalidImage) {
		t.Errorf("Expected invalid image, got %v", err)
	}
	if _, err := manager.DetectBoxes(ctx, sheetPNG(t), nil, 0.5); !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
		t.Errorf("Expected invalid input for missing templates, got %v", err)
	}
	if _, err := manager.DetectBoxes(ctx, sheetPNG(t), [][]byte{[]byte("junk")}, 0.5); !apperrors.IsType(err, apperrors.ErrorTypeInvalidImage) {
		t.Errorf("Expected invalid image for a bad template, got %v", err)
	}
	if _, err := manager.ListAnnotations(ctx, 0, 10); !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
		t.Errorf("Expected invalid input for page 0, got %v", err)
	}
}

func TestManager_StatelessDetection(t *testing.T) {
	fake := &sequenceModel{outputs: [][]float32{confirmed, empty}}
	manager, events, cleanup := setupTestManager(t, fake)
	defer cleanup()
	ctx := context.Background()

	ann, err := manager.DetectAnswers(ctx, sheetPNG(t), [][]byte{templatePNG(t)}, 0.95)
	if err != nil {
		t.Fatalf("DetectAnswers failed: %v", err)
	}
	if ann.ID != "" || len(ann.Objects) != 6 {
		t.Errorf("Expected 6 unsaved objects, got id %q and %d objects", ann.ID, len(ann.Objects))
	}

	png, err := manager.MarkBoxes(ctx, sheetPNG(t), [][]byte{templatePNG(t)}, 0.95)
	if err != nil {
		t.Fatalf("MarkBoxes failed: %v", err)
	}
	if len(png) == 0 {
		t.Error("Expected PNG output")
	}

	page, err := manager.ListAnnotations(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListAnnotations failed: %v", err)
	}
	if page.Total != 0 || len(events.types()) != 0 {
		t.Errorf("Stateless calls must not persist or publish, got total %d and events %v", page.Total, events.types())
	}
}
