package ai

import (
	"fmt"
	"image"

	"answersheet/internal/apperrors"
	"answersheet/internal/model"

	"gocv.io/x/gocv"
)

// LocateOptions tunes box finding.
type LocateOptions struct {
	// Threshold is the minimum normalized correlation a location needs.
	Threshold float64
	Strategy  DedupStrategy
}

// LocateBoxes finds answer boxes on a page by template matching. Every
// template is resized to the first one, a location qualifies when any template
// scores at least opts.Threshold there, and qualifying locations closer than
// DedupRadius to an accepted box are dropped.
func LocateBoxes(img gocv.Mat, templates []gocv.Mat, opts LocateOptions) ([]model.Box, error) {
	if len(templates) == 0 {
		return nil, apperrors.NewInvalidInputError("at least one box template is required", nil)
	}
	if img.Empty() {
		return nil, apperrors.NewInvalidImageError("page image is empty", nil)
	}
	for i := range templates {
		if templates[i].Empty() {
			return nil, apperrors.NewInvalidImageError(fmt.Sprintf("template %d is empty", i), nil)
		}
	}

	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	w, h := templates[0].Cols(), templates[0].Rows()
	if w > gray.Cols() || h > gray.Rows() {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("template %dx%d is larger than the image %dx%d", w, h, gray.Cols(), gray.Rows()), nil)
	}

	maps := make([]scoreMap, 0, len(templates))
	for i := range templates {
		sm, err := matchTemplate(gray, templates[i], w, h)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		maps = append(maps, sm)
	}

	kept := dedupCandidates(collectCandidates(maps, opts.Threshold), DedupRadius, opts.Strategy)

	boxes := make([]model.Box, 0, len(kept))
	for _, c := range kept {
		boxes = append(boxes, model.Box{
			XMin: c.X,
			YMin: c.Y,
			XMax: c.X + w,
			YMax: c.Y + h,
		})
	}
	return boxes, nil
}

// matchTemplate resizes tmpl to w x h and scores it against gray with TM_CCOEFF_NORMED.
func matchTemplate(gray, tmpl gocv.Mat, w, h int) (scoreMap, error) {
	tmplGray, err := toGray(tmpl)
	if err != nil {
		return scoreMap{}, err
	}
	defer tmplGray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(tmplGray, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return scoreMap{}, apperrors.NewInvalidImageError("failed to resize template", nil)
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(gray, resized, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return scoreMap{}, apperrors.NewInternalError("template matching produced no scores", nil)
	}

	data, err := result.DataPtrFloat32()
	if err != nil {
		return scoreMap{}, apperrors.NewInternalError("failed to read match scores", err)
	}

	scores := make([]float32, len(data))
	copy(scores, data)
	return scoreMap{rows: result.Rows(), cols: result.Cols(), data: scores}, nil
}

// toGray returns a single-channel copy of img.
func toGray(img gocv.Mat) (gocv.Mat, error) {
	var code gocv.ColorConversionCode
	switch img.Channels() {
	case 1:
		return img.Clone(), nil
	case 3:
		code = gocv.ColorBGRToGray
	case 4:
		code = gocv.ColorBGRAToGray
	default:
		return gocv.Mat{}, apperrors.NewInvalidImageError(
			fmt.Sprintf("unsupported channel count %d", img.Channels()), nil)
	}

	gray := gocv.NewMat()
	if err := gocv.CvtColor(img, &gray, code); err != nil {
		gray.Close()
		return gocv.Mat{}, apperrors.NewInvalidImageError("failed to convert image to grayscale", err)
	}
	return gray, nil
}
