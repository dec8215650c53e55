package ai

import (
	"fmt"
	"image"
	"image/color"

	"answersheet/internal/model"

	"gocv.io/x/gocv"
)

const boxThickness = 2

// Colors are RGBA; gocv converts them to BGR scalars.
var (
	ColorEmpty       = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	ColorConfirmed   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	ColorCrossedOut  = color.RGBA{R: 0, G: 255, B: 255, A: 0}
	ColorUnpredicted = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// LabelColor returns the outline color for label.
func LabelColor(label model.Label) color.RGBA {
	switch label {
	case model.LabelEmpty:
		return ColorEmpty
	case model.LabelConfirmed:
		return ColorConfirmed
	case model.LabelCrossedOut:
		return ColorCrossedOut
	default:
		return ColorUnpredicted
	}
}

// DrawObjects outlines every object in the color of its label.
func DrawObjects(img *gocv.Mat, objects []model.Object) error {
	for _, obj := range objects {
		if err := drawBox(img, obj.BoundingBox, LabelColor(obj.Name)); err != nil {
			return err
		}
	}
	return nil
}

// DrawBoxes outlines every box in c.
func DrawBoxes(img *gocv.Mat, boxes []model.Box, c color.RGBA) error {
	for _, box := range boxes {
		if err := drawBox(img, box, c); err != nil {
			return err
		}
	}
	return nil
}

func drawBox(img *gocv.Mat, box model.Box, c color.RGBA) error {
	rect := image.Rect(box.XMin, box.YMin, box.XMax, box.YMax)
	if err := gocv.Rectangle(img, rect, c, boxThickness); err != nil {
		return fmt.Errorf("failed to draw box %v: %w", rect, err)
	}
	return nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
