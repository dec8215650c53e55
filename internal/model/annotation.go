package model

import "time"

// Size is the pixel size of a stored image. Depth is the channel count.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`
}

// ImageAnnotation is a stored answer sheet together with the objects found on it.
type ImageAnnotation struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      Size      `json:"size"`
	Objects   []Object  `json:"objects"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Boxes returns the bounding boxes of the annotation's objects in order.
func (a *ImageAnnotation) Boxes() []Box {
	boxes := make([]Box, len(a.Objects))
	for i, obj := range a.Objects {
		boxes[i] = obj.BoundingBox
	}
	return boxes
}

// Normalize fills in defaults on client supplied objects.
func Normalize(objects []Object) []Object {
	out := make([]Object, len(objects))
	for i, obj := range objects {
		if obj.Name == "" {
			obj.Name = LabelUnpredicted
		}
		out[i] = obj
	}
	return out
}
