//go:build cgo

package scorer

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

var ortInit struct {
	once sync.Once
	err  error
}

// onnxModel runs an exported pairwise scorer with input "features" [1, 2D] and output "logit" [1, 1].
// Tensors are preallocated, so runs are serialized.
type onnxModel struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func loadONNX(path string, dim int) (*Learned, error) {
	data, err := readArtifactFile(path)
	if err != nil {
		return nil, err
	}

	ortInit.once.Do(func() { ortInit.err = ort.InitializeEnvironment() })
	if ortInit.err != nil {
		return nil, fmt.Errorf("%w: initialize onnx runtime: %w", domain.ErrScorerLoad, ortInit.err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(2*dim)), make([]float32, 2*dim))
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %w", domain.ErrScorerLoad, err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %w", domain.ErrScorerLoad, err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"features"}, []string{"logit"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("%w: create onnx session %s: %w", domain.ErrScorerLoad, path, err)
	}

	m := &onnxModel{session: session, input: input, output: output}
	return newLearned(m, dim, version(data)), nil
}

func (m *onnxModel) Logit(features []float32) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), features)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx inference: %w", err)
	}
	return float64(m.output.GetData()[0]), nil
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		_ = m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		_ = m.output.Destroy()
		m.output = nil
	}
	return err
}
