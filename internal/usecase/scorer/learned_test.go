package scorer

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// testArtifact is a 2-dim model with hidden units h0 = relu(p0+c0), h1 = relu(p1+c1)
// and logit 2*h0 - 2*h1 - 1.
func testArtifact() *Artifact {
	return &Artifact{
		Format:    nativeFormat,
		EmbDim:    2,
		HiddenDim: 2,
		W1: [][]float32{
			{1, 0, 1, 0},
			{0, 1, 0, 1},
		},
		B1: []float32{0, 0},
		W2: []float32{2, -2},
		B2: -1,
	}
}

func writeTestArtifact(t *testing.T, a *Artifact) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranker.json")
	if err := WriteArtifact(path, a); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	return path
}

func TestMLP_Logit(t *testing.T) {
	m := testArtifact().model()
	// h0 = relu(1+1) = 2, h1 = relu(0+0) = 0 -> 2*2 - 2*0 - 1 = 3
	got, _ := m.Logit([]float32{1, 0, 1, 0})
	if got != 3 {
		t.Errorf("expected logit 3, got %v", got)
	}
	// h0 = relu(-1 + 0) = 0, h1 = relu(0 + 1) = 1 -> -2 - 1 = -3
	got, _ = m.Logit([]float32{-1, 0, 0, 1})
	if got != -3 {
		t.Errorf("expected logit -3, got %v", got)
	}
}

func TestLearned_ScoresAreProbabilities(t *testing.T) {
	l, err := loadNative(writeTestArtifact(t, testArtifact()), 2)
	if err != nil {
		t.Fatalf("loadNative: %v", err)
	}

	scores, err := l.Score([]float32{1, 0}, [][]float32{{1, 0}, {0, 1}, {-1, 0}})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for i, s := range scores {
		if s <= 0 || s >= 1 {
			t.Errorf("scores[%d] = %v outside (0, 1)", i, s)
		}
	}
	if math.Abs(scores[0]-Sigmoid(3)) > 1e-12 {
		t.Errorf("scores[0] = %v, want sigmoid(3)", scores[0])
	}
	if scores[0] <= scores[1] {
		t.Errorf("matching candidate should outrank: %v", scores)
	}
	if l.Variant() != VariantLearned {
		t.Errorf("unexpected variant %q", l.Variant())
	}
}

func TestLearned_DimensionMismatch(t *testing.T) {
	l, err := loadNative(writeTestArtifact(t, testArtifact()), 2)
	if err != nil {
		t.Fatalf("loadNative: %v", err)
	}
	if _, err := l.Score([]float32{1, 0}, [][]float32{{1, 0, 0}}); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestLoadNative_VersionTracksContent(t *testing.T) {
	a := testArtifact()
	l1, _ := loadNative(writeTestArtifact(t, a), 2)
	a.B2 = 0.5
	l2, _ := loadNative(writeTestArtifact(t, a), 2)

	if l1.Version() == l2.Version() {
		t.Errorf("different weights must yield different versions, both %q", l1.Version())
	}
}

func TestLoadNative_Corrupt(t *testing.T) {
	badShape := testArtifact()
	badShape.W1[1] = []float32{1, 2}
	badHidden := testArtifact()
	badHidden.HiddenDim = 3
	badFormat := testArtifact()
	badFormat.Format = "pytorch"
	badDim := testArtifact()
	badDim.EmbDim = 3

	tests := map[string]*Artifact{
		"row shape":   badShape,
		"hidden size": badHidden,
		"format":      badFormat,
		"emb dim":     badDim,
	}
	for name, a := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadNative(writeTestArtifact(t, a), 2)
			if !errors.Is(err, domain.ErrScorerLoad) {
				t.Fatalf("expected ErrScorerLoad, got %v", err)
			}
		})
	}

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ranker.json")
		_ = os.WriteFile(path, []byte("\x00\x01torch"), 0o600)
		if _, err := loadNative(path, 2); !errors.Is(err, domain.ErrScorerLoad) {
			t.Fatalf("expected ErrScorerLoad, got %v", err)
		}
	})
}

func TestProvider_Disabled(t *testing.T) {
	p := NewProvider(Config{Mode: ModeDisabled, Dimensions: 2}, zap.NewNop())
	s, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Variant() != VariantCosine {
		t.Errorf("expected cosine, got %q", s.Variant())
	}
}

func TestProvider_MissingArtifactFallsBack(t *testing.T) {
	p := NewProvider(Config{
		Mode:       ModeLearned,
		Path:       filepath.Join(t.TempDir(), "absent.json"),
		Dimensions: 2,
	}, zap.NewNop())

	s, err := p.Get()
	if err != nil {
		t.Fatalf("missing artifact must not fail: %v", err)
	}
	if s.Variant() != VariantCosine {
		t.Errorf("expected cosine fallback, got %q", s.Variant())
	}
}

func TestProvider_MissingONNXArtifactFallsBack(t *testing.T) {
	p := NewProvider(Config{
		Mode:       ModeLearned,
		Format:     FormatONNX,
		Path:       filepath.Join(t.TempDir(), "absent.onnx"),
		Dimensions: 2,
	}, zap.NewNop())

	s, err := p.Get()
	if err != nil {
		t.Fatalf("missing artifact must not fail: %v", err)
	}
	if s.Variant() != VariantCosine {
		t.Errorf("expected cosine fallback, got %q", s.Variant())
	}
}

func TestProvider_CorruptArtifactFailsAndRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranker.json")
	_ = os.WriteFile(path, []byte("{"), 0o600)
	p := NewProvider(Config{Mode: ModeLearned, Path: path, Dimensions: 2}, zap.NewNop())

	if _, err := p.Get(); !errors.Is(err, domain.ErrScorerLoad) {
		t.Fatalf("expected ErrScorerLoad, got %v", err)
	}

	if err := WriteArtifact(path, testArtifact()); err != nil {
		t.Fatal(err)
	}
	s, err := p.Get()
	if err != nil {
		t.Fatalf("retry after fixing artifact: %v", err)
	}
	if s.Variant() != VariantLearned {
		t.Errorf("expected learned, got %q", s.Variant())
	}
}

func TestProvider_ConcurrentGetConverges(t *testing.T) {
	p := NewProvider(Config{
		Mode:       ModeLearned,
		Path:       writeTestArtifact(t, testArtifact()),
		Dimensions: 2,
	}, zap.NewNop())

	const n = 32
	got := make([]Scorer, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.Get()
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			got[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d received a different scorer instance", i)
		}
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestProvider_UnknownFormat(t *testing.T) {
	p := NewProvider(Config{Mode: ModeLearned, Path: "x", Format: "torch", Dimensions: 2}, zap.NewNop())
	if _, err := p.Get(); !errors.Is(err, domain.ErrScorerLoad) {
		t.Fatalf("expected ErrScorerLoad, got %v", err)
	}
}
