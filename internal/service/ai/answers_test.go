package ai

import (
	"testing"

	"answersheet/internal/model"

	jsoniter "github.com/json-iterator/go"
)

func obj(x, y int, label model.Label) model.Object {
	return model.Object{
		Name:        label,
		BoundingBox: model.Box{XMin: x, YMin: y, XMax: x + 30, YMax: y + 30},
	}
}

func TestSortIntoRows_GroupsByThreshold(t *testing.T) {
	objects := []model.Object{
		obj(90, 55, model.LabelEmpty),
		obj(10, 10, model.LabelEmpty),
		obj(60, 50, model.LabelEmpty),
		obj(50, 12, model.LabelEmpty),
	}

	rows := SortIntoRows(objects, 20)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 2 {
			t.Fatalf("Expected 2 objects in row %d, got %d", i, len(row))
		}
	}
	if rows[0][0].BoundingBox.XMin != 10 || rows[0][1].BoundingBox.XMin != 50 {
		t.Errorf("Row 0 not ordered by x_min: %+v", rows[0])
	}
	if rows[1][0].BoundingBox.XMin != 60 || rows[1][1].BoundingBox.XMin != 90 {
		t.Errorf("Row 1 not ordered by x_min: %+v", rows[1])
	}
}

func TestSortIntoRows_ComparesAgainstRowStart(t *testing.T) {
	objects := []model.Object{
		obj(0, 0, model.LabelEmpty),
		obj(40, 15, model.LabelEmpty),
		obj(80, 30, model.LabelEmpty),
	}

	rows := SortIntoRows(objects, 20)
	if len(rows) != 2 {
		t.Fatalf("Expected drift to open a new row, got %d rows", len(rows))
	}
	if len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Errorf("Unexpected row sizes %d and %d", len(rows[0]), len(rows[1]))
	}
}

func TestSortIntoRows_BoundaryIsInclusive(t *testing.T) {
	rows := SortIntoRows([]model.Object{obj(0, 0, model.LabelEmpty), obj(40, 20, model.LabelEmpty)}, 20)
	if len(rows) != 1 {
		t.Errorf("Expected one row when the difference equals the threshold, got %d", len(rows))
	}
}

func TestSortIntoRows_Empty(t *testing.T) {
	rows := SortIntoRows(nil, 20)
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected empty non-nil rows, got %v", rows)
	}
}

func TestSortIntoRows_PreservesMultiset(t *testing.T) {
	objects := []model.Object{
		obj(300, 400, model.LabelConfirmed),
		obj(5, 5, model.LabelEmpty),
		obj(120, 402, model.LabelCrossedOut),
		obj(200, 8, model.LabelUnpredicted),
		obj(10, 200, model.LabelEmpty),
	}

	rows := SortIntoRows(objects, 20)
	total := 0
	for _, row := range rows {
		total += len(row)
	}
	if total != len(objects) {
		t.Errorf("Expected %d objects across rows, got %d", len(objects), total)
	}
}

func TestDeriveAnswers_LastConfirmedWins(t *testing.T) {
	row := []model.Object{
		obj(5, 0, model.LabelEmpty),
		obj(50, 0, model.LabelConfirmed),
		obj(95, 0, model.LabelConfirmed),
	}

	answers := DeriveAnswers(SortIntoRows(row, 20))
	if got := answers[1]; got == nil || *got != "C" {
		t.Errorf("Expected answer C, got %v", got)
	}
}

func TestDeriveAnswers_NoConfirmedIsNull(t *testing.T) {
	rows := [][]model.Object{
		{obj(0, 0, model.LabelEmpty), obj(40, 0, model.LabelCrossedOut)},
		{obj(0, 50, model.LabelEmpty), obj(40, 50, model.LabelConfirmed)},
	}

	answers := DeriveAnswers(rows)
	if len(answers) != 2 {
		t.Fatalf("Expected 2 answers, got %d", len(answers))
	}
	if answers[1] != nil {
		t.Errorf("Expected nil answer for question 1, got %q", *answers[1])
	}
	if answers[2] == nil || *answers[2] != "B" {
		t.Errorf("Expected B for question 2, got %v", answers[2])
	}
}

func TestOptionLetter(t *testing.T) {
	if OptionLetter(0) != "A" || OptionLetter(4) != "E" {
		t.Errorf("Unexpected letters %s %s", OptionLetter(0), OptionLetter(4))
	}
}

func TestAnswers_MarshalInQuestionOrder(t *testing.T) {
	letter := func(s string) *string { return &s }
	answers := Answers{11: letter("B"), 2: nil, 10: letter("C"), 1: letter("A")}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(answers)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"1":"A","2":null,"10":"C","11":"B"}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}

	data, _ = jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(Answers{})
	if string(data) != "{}" {
		t.Errorf("Expected {} for no questions, got %s", data)
	}
}
