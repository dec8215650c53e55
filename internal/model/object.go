package model

// Label is the classification state of an answer box.
type Label string

const (
	LabelUnpredicted Label = "unpredicted"
	LabelEmpty       Label = "empty"
	LabelConfirmed   Label = "confirmed"
	LabelCrossedOut  Label = "crossedout"
)

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelUnpredicted, LabelEmpty, LabelConfirmed, LabelCrossedOut:
		return true
	}
	return false
}

// Box is an axis-aligned pixel rectangle with a top-left origin.
// XMax and YMax are exclusive.
type Box struct {
	XMin int `json:"x_min" validate:"gte=0"`
	YMin int `json:"y_min" validate:"gte=0"`
	XMax int `json:"x_max" validate:"gtfield=XMin"`
	YMax int `json:"y_max" validate:"gtfield=YMin"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box.
func (b Box) Height() int {
	return b.YMax - b.YMin
}

// Object is a box tagged with a label and an optional confidence.
type Object struct {
	Name        Label    `json:"name" validate:"omitempty,oneof=unpredicted empty confirmed crossedout"`
	BoundingBox Box      `json:"bounding_box"`
	Confidence  *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// NewObject returns an unpredicted object for box.
func NewObject(box Box) Object {
	return Object{Name: LabelUnpredicted, BoundingBox: box}
}

// NewLabeledObject returns an object carrying a classifier verdict.
func NewLabeledObject(box Box, label Label, confidence float64) Object {
	return Object{Name: label, BoundingBox: box, Confidence: &confidence}
}
