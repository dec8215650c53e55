package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"answersheet/internal/apperrors"
	"answersheet/internal/logger"

	"gocv.io/x/gocv"
)

// NetModel serves inference from a pool of identical DNN networks so that
// concurrent requests do not share one gocv.Net.
type NetModel struct {
	nets   chan *gocv.Net
	all    []*gocv.Net
	logger *logger.Logger
	once   sync.Once
}

// NewNetModel loads workers copies of the network at modelPath. configPath may
// be empty for single-file formats such as ONNX.
func NewNetModel(modelPath, configPath string, workers int, logger *logger.Logger) (*NetModel, error) {
	if workers < 1 {
		workers = 1
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	m := &NetModel{
		nets:   make(chan *gocv.Net, workers),
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		net, err := loadNet(modelPath, configPath)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.all = append(m.all, net)
		m.nets <- net
	}

	logger.Info("Classifier loaded from %s with %d workers", modelPath, workers)
	return m, nil
}

func loadNet(modelPath, configPath string) (*gocv.Net, error) {
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network from %s", modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set target: %w", err)
	}
	return &net, nil
}

// Predict implements Model. It blocks until a network is free.
func (m *NetModel) Predict(crop gocv.Mat) ([]float32, error) {
	if crop.Empty() {
		return nil, apperrors.NewClassificationError("crop is empty", nil)
	}

	net := <-m.nets
	defer func() { m.nets <- net }()

	blob := gocv.BlobFromImage(crop, 1.0, image.Pt(crop.Cols(), crop.Rows()), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	if blob.Empty() {
		return nil, apperrors.NewClassificationError("failed to build input blob", nil)
	}

	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, apperrors.NewClassificationError("network returned no output", nil)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, apperrors.NewClassificationError("failed to read network output", err)
	}

	result := make([]float32, len(data))
	copy(result, data)
	return result, nil
}

// Close releases every network in the pool.
func (m *NetModel) Close() error {
	m.once.Do(func() {
		for _, net := range m.all {
			net.Close()
		}
	})
	return nil
}
