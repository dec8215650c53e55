package ai

import (
	"answersheet/internal/apperrors"
	"answersheet/internal/model"

	"gocv.io/x/gocv"
)

// DecodeImage decodes an encoded image buffer. On error the returned Mat is
// zero and must not be closed.
func DecodeImage(data []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, apperrors.NewInvalidImageError("image payload is empty", nil)
	}

	mat, err := gocv.IMDecode(data, flags)
	if err != nil {
		return gocv.Mat{}, apperrors.NewInvalidImageError("failed to decode image", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, apperrors.NewInvalidImageError("file could not be decoded as an image", nil)
	}
	return mat, nil
}

// DecodeColor decodes a page image as 3-channel BGR.
func DecodeColor(data []byte) (gocv.Mat, error) {
	return DecodeImage(data, gocv.IMReadColor)
}

// DecodeTemplates decodes box templates as grayscale. Either all templates are
// returned or none are.
func DecodeTemplates(payloads [][]byte) ([]gocv.Mat, error) {
	templates := make([]gocv.Mat, 0, len(payloads))
	for _, data := range payloads {
		mat, err := DecodeImage(data, gocv.IMReadGrayScale)
		if err != nil {
			CloseAll(templates)
			return nil, err
		}
		templates = append(templates, mat)
	}
	return templates, nil
}

// CloseAll releases every Mat in mats.
func CloseAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}

// SizeOf reports the pixel size of mat.
func SizeOf(mat gocv.Mat) model.Size {
	return model.Size{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Depth:  mat.Channels(),
	}
}
