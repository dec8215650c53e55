package ai

import (
	"bytes"
	"sort"
	"strconv"

	"answersheet/internal/model"

	jsoniter "github.com/json-iterator/go"
)

// Answers maps a 1-based question number to the chosen option letter, or nil
// when no box in the row is confirmed.
type Answers map[int]*string

// MarshalJSON writes the questions in numeric order, so "2" precedes "10".
func (a Answers) MarshalJSON() ([]byte, error) {
	questions := make([]int, 0, len(a))
	for q := range a {
		questions = append(questions, q)
	}
	sort.Ints(questions)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range questions {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(q)))
		buf.WriteByte(':')
		value, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(a[q])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SortIntoRows groups objects into question rows. Objects are ordered by
// y_min, and an object joins the current row while its y_min is within
// yThreshold of the row's first member. Each row is ordered by x_min.
func SortIntoRows(objects []model.Object, yThreshold int) [][]model.Object {
	if len(objects) == 0 {
		return [][]model.Object{}
	}

	sorted := make([]model.Object, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.YMin < sorted[j].BoundingBox.YMin
	})

	var rows [][]model.Object
	var current []model.Object
	for _, obj := range sorted {
		if len(current) > 0 && obj.BoundingBox.YMin-current[0].BoundingBox.YMin > yThreshold {
			rows = append(rows, current)
			current = nil
		}
		current = append(current, obj)
	}
	rows = append(rows, current)

	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].BoundingBox.XMin < row[j].BoundingBox.XMin
		})
	}
	return rows
}

// DeriveAnswers picks the answer for every row. When several boxes in a row
// are confirmed the right-most one wins.
func DeriveAnswers(rows [][]model.Object) Answers {
	answers := make(Answers, len(rows))
	for i, row := range rows {
		var chosen *string
		for pos, obj := range row {
			if obj.Name == model.LabelConfirmed {
				letter := OptionLetter(pos)
				chosen = &letter
			}
		}
		answers[i+1] = chosen
	}
	return answers
}

// OptionLetter returns the letter for the 0-based position in a row.
func OptionLetter(pos int) string {
	return string(rune('A' + pos))
}
