//go:build !cgo

package scorer

import (
	"fmt"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// loadONNX fails when built without CGO (see onnx.go for the real implementation).
func loadONNX(path string, _ int) (*Learned, error) {
	if _, err := readArtifactFile(path); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: onnx scorer requires CGO and the onnxruntime library", domain.ErrScorerLoad)
}
