package ai

import (
	"fmt"
	"image"
	"math"

	"answersheet/internal/apperrors"
	"answersheet/internal/model"

	"gocv.io/x/gocv"
)

// Mode is the classifier output layout.
type Mode string

const (
	// ModeMultiClass expects three probabilities ordered confirmed, crossedout, empty.
	ModeMultiClass Mode = "multiclass"
	// ModeBinary expects a single logit for "confirmed".
	ModeBinary Mode = "binary"
)

var multiClassLabels = [...]model.Label{
	model.LabelConfirmed,
	model.LabelCrossedOut,
	model.LabelEmpty,
}

// Model runs inference on one box crop and returns its raw output vector.
type Model interface {
	Predict(crop gocv.Mat) ([]float32, error)
}

// ClassifyOptions tunes box classification.
type ClassifyOptions struct {
	Mode Mode
	// InputSize is the square side crops are resized to. Zero keeps the crop size.
	InputSize int
	// Threshold applies to binary mode only.
	Threshold float64
}

// ClassifyBoxes labels each box of img. Outputs are aligned with boxes. Any
// failure aborts the whole batch and no partial result is returned.
func ClassifyBoxes(img gocv.Mat, boxes []model.Box, m Model, opts ClassifyOptions) ([]model.Label, []float64, error) {
	if m == nil {
		return nil, nil, apperrors.NewClassificationError("no classifier model is loaded", nil)
	}
	if img.Empty() {
		return nil, nil, apperrors.NewInvalidImageError("page image is empty", nil)
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	labels := make([]model.Label, len(boxes))
	confidences := make([]float64, len(boxes))

	for i, box := range boxes {
		label, conf, err := classifyBox(img, bounds, box, m, opts)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeClassification) {
				return nil, nil, err
			}
			return nil, nil, apperrors.NewClassificationError(fmt.Sprintf("failed to classify box %d", i), err)
		}
		labels[i] = label
		confidences[i] = conf
	}
	return labels, confidences, nil
}

func classifyBox(img gocv.Mat, bounds image.Rectangle, box model.Box, m Model, opts ClassifyOptions) (model.Label, float64, error) {
	rect := image.Rect(box.XMin, box.YMin, box.XMax, box.YMax)
	if rect.Empty() || !rect.In(bounds) {
		return "", 0, fmt.Errorf("box %v lies outside the %dx%d image", rect, bounds.Dx(), bounds.Dy())
	}

	crop := img.Region(rect)
	defer crop.Close()

	input := crop
	if opts.InputSize > 0 {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(crop, &resized, image.Pt(opts.InputSize, opts.InputSize), 0, 0, gocv.InterpolationLinear)
		if resized.Empty() {
			return "", 0, fmt.Errorf("failed to resize crop to %d", opts.InputSize)
		}
		input = resized
	}

	output, err := m.Predict(input)
	if err != nil {
		return "", 0, err
	}
	return Interpret(output, opts)
}

// Interpret maps a raw model output to a label and a confidence in [0,1].
func Interpret(output []float32, opts ClassifyOptions) (model.Label, float64, error) {
	for _, v := range output {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", 0, apperrors.NewClassificationError("model output is not finite", nil)
		}
	}

	switch opts.Mode {
	case ModeBinary:
		if len(output) != 1 {
			return "", 0, apperrors.NewClassificationError(
				fmt.Sprintf("binary classifier must return 1 value, got %d", len(output)), nil)
		}
		label, conf := interpretBinary(output[0], opts.Threshold)
		return label, conf, nil
	case ModeMultiClass, "":
		if len(output) != len(multiClassLabels) {
			return "", 0, apperrors.NewClassificationError(
				fmt.Sprintf("multiclass classifier must return %d values, got %d", len(multiClassLabels), len(output)), nil)
		}
		label, conf := interpretMultiClass(output)
		return label, conf, nil
	default:
		return "", 0, apperrors.NewClassificationError(fmt.Sprintf("unknown classifier mode %q", opts.Mode), nil)
	}
}

// interpretMultiClass picks the arg-max class. Ties resolve to the lower index.
func interpretMultiClass(probs []float32) (model.Label, float64) {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return multiClassLabels[best], clamp01(float64(probs[best]))
}

func interpretBinary(logit float32, threshold float64) (model.Label, float64) {
	p := sigmoid(float64(logit))
	if p >= threshold {
		return model.LabelConfirmed, p
	}
	return model.LabelEmpty, 1 - p
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
