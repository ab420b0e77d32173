package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

const nativeFormat = "siamese-mlp"

// errArtifactMissing is returned when the configured artifact path does not exist.
var errArtifactMissing = errors.New("scorer artifact missing")

// Artifact is the native JSON weights file of the pairwise scorer.
type Artifact struct {
	Format    string      `json:"format"`
	EmbDim    int         `json:"emb_dim"`
	HiddenDim int         `json:"hidden_dim"`
	W1        [][]float32 `json:"w1"`
	B1        []float32   `json:"b1"`
	W2        []float32   `json:"w2"`
	B2        float32     `json:"b2"`
}

// Validate checks tensor shapes against the declared dimensions and dim.
func (a *Artifact) Validate(dim int) error {
	if a.Format != nativeFormat {
		return fmt.Errorf("unknown artifact format %q", a.Format)
	}
	if a.EmbDim != dim {
		return domain.NewDimensionError(dim, a.EmbDim)
	}
	if a.HiddenDim <= 0 {
		return fmt.Errorf("hidden_dim must be positive, got %d", a.HiddenDim)
	}
	if len(a.W1) != a.HiddenDim || len(a.B1) != a.HiddenDim || len(a.W2) != a.HiddenDim {
		return fmt.Errorf("layer sizes w1=%d b1=%d w2=%d do not match hidden_dim %d",
			len(a.W1), len(a.B1), len(a.W2), a.HiddenDim)
	}
	for i, row := range a.W1 {
		if len(row) != 2*dim {
			return fmt.Errorf("w1 row %d has %d inputs, expected %d", i, len(row), 2*dim)
		}
		if !finite(row) {
			return fmt.Errorf("w1 row %d has non-finite weights", i)
		}
	}
	if !finite(a.B1) || !finite(a.W2) || !finite([]float32{a.B2}) {
		return errors.New("non-finite weights")
	}
	return nil
}

func (a *Artifact) model() *mlp {
	return &mlp{w1: a.W1, b1: a.B1, w2: a.W2, b2: a.B2}
}

// WriteArtifact writes a native artifact to path.
func WriteArtifact(path string, a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// readArtifactFile returns the artifact bytes, errArtifactMissing when absent.
func readArtifactFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errArtifactMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrScorerLoad, path, err)
	}
	return data, nil
}

// loadNative parses and validates a native artifact.
func loadNative(path string, dim int) (*Learned, error) {
	data, err := readArtifactFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrScorerLoad, path, err)
	}
	if err := a.Validate(dim); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrScorerLoad, path, err)
	}
	return newLearned(a.model(), dim, version(data)), nil
}

// version derives a short content fingerprint so cached results never outlive a model swap.
func version(data []byte) string {
	sum := sha256.Sum256(data)
	return VariantLearned + "@" + hex.EncodeToString(sum[:6])
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
