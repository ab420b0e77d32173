package index

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// clustered returns n unit vectors scattered around `groups` well separated directions.
func clustered(n, dim, groups int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[i%groups] = 10
		for d := range v {
			v[d] += float32(rng.NormFloat64() * 0.1)
		}
		out[i] = domain.Normalize(v)
	}
	return out
}

func newIndex(t *testing.T, dim int) *IVF {
	t.Helper()
	x, err := New(Config{Dimensions: dim, NProbe: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return x
}

func TestNew_InvalidDimensions(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestSearch_BeforeBuild(t *testing.T) {
	x := newIndex(t, 4)
	_, err := x.Search([]float32{1, 0, 0, 0}, 3)
	if !errors.Is(err, domain.ErrIndexNotInitialized) {
		t.Fatalf("expected ErrIndexNotInitialized, got %v", err)
	}
}

func TestBuild_TooFewEmbeddings(t *testing.T) {
	x := newIndex(t, 4)
	err := x.Build(clustered(3, 4, 2, 1), 4)
	if !errors.Is(err, domain.ErrTraining) {
		t.Fatalf("expected ErrTraining, got %v", err)
	}
	if x.IsTrained() {
		t.Error("failed training must leave the index untrained")
	}
}

func TestBuild_NonPositiveClusters(t *testing.T) {
	x := newIndex(t, 4)
	if err := x.Build(clustered(8, 4, 2, 1), 0); !errors.Is(err, domain.ErrTraining) {
		t.Fatalf("expected ErrTraining, got %v", err)
	}
}

func TestBuild_DimensionMismatch(t *testing.T) {
	x := newIndex(t, 4)
	vecs := clustered(8, 4, 2, 1)
	vecs[5] = []float32{1, 0, 0}

	err := x.Build(vecs, 2)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if x.Size() != 0 {
		t.Errorf("nothing should be stored on mismatch, size=%d", x.Size())
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	x := newIndex(t, 4)
	if err := x.Build(clustered(8, 4, 2, 1), 2); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := x.Search([]float32{1, 0}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch_FindsExactMatch(t *testing.T) {
	x := newIndex(t, 8)
	vecs := clustered(200, 8, 4, 7)
	if err := x.Build(vecs, 4); err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, id := range []int{0, 17, 123, 199} {
		hits, err := x.Search(vecs[id], 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(hits) != 1 || hits[0].VectorID != int64(id) {
			t.Errorf("query %d: expected itself as top hit, got %+v", id, hits)
		}
	}
}

func TestSearch_OrderingAndLength(t *testing.T) {
	x := newIndex(t, 8)
	vecs := clustered(100, 8, 4, 3)
	if err := x.Build(vecs, 4); err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := x.Search(vecs[10], 15)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) > 15 {
		t.Fatalf("expected at most 15 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Distance < hits[i].Distance {
			t.Fatalf("hits not descending at %d: %v", i, hits)
		}
		if hits[i-1].Distance == hits[i].Distance && hits[i-1].VectorID > hits[i].VectorID {
			t.Fatalf("ties not broken by ascending id at %d: %v", i, hits)
		}
	}
}

func TestSearch_TiesByAscendingID(t *testing.T) {
	x, _ := New(Config{Dimensions: 2, NProbe: 1})
	same := []float32{1, 0}
	vecs := [][]float32{same, same, same, {0, 1}}
	if err := x.Build(vecs, 1); err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := x.Search(same, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, h := range hits {
		if h.VectorID != int64(i) {
			t.Fatalf("expected ids 0,1,2 in order, got %+v", hits)
		}
	}
}

func TestSearch_ProbesOnlyNearestClusters(t *testing.T) {
	x, _ := New(Config{Dimensions: 4, NProbe: 1})
	vecs := clustered(40, 4, 4, 11)
	if err := x.Build(vecs, 4); err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := x.Search(vecs[0], 40)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) >= 40 {
		t.Errorf("probing one cluster should not return the whole corpus, got %d", len(hits))
	}
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	x := newIndex(t, 4)
	_ = x.Build(clustered(8, 4, 2, 1), 2)
	hits, err := x.Search(clustered(1, 4, 2, 2)[0], 0)
	if err != nil || hits != nil {
		t.Fatalf("expected empty result, got %v, %v", hits, err)
	}
}

func TestBuild_AppendsWithoutRetraining(t *testing.T) {
	x := newIndex(t, 8)
	if err := x.Build(clustered(50, 8, 4, 1), 4); err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := x.NClusters()

	extra := clustered(3, 8, 4, 99)
	if err := x.Build(extra, 50); err != nil {
		t.Fatalf("append Build: %v", err)
	}
	if x.NClusters() != before {
		t.Errorf("quantizer retrained: clusters %d -> %d", before, x.NClusters())
	}
	if x.Size() != 53 {
		t.Errorf("expected size 53, got %d", x.Size())
	}

	hits, _ := x.Search(extra[2], 1)
	if len(hits) != 1 || hits[0].VectorID != 52 {
		t.Errorf("appended vector should keep insertion id 52, got %+v", hits)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	vecs := clustered(120, 8, 5, 5)
	a, b := newIndex(t, 8), newIndex(t, 8)
	_ = a.Build(vecs, 5)
	_ = b.Build(vecs, 5)

	for i := range a.centroids {
		for d := range a.centroids[i] {
			if a.centroids[i][d] != b.centroids[i][d] {
				t.Fatalf("centroid %d differs between identical builds", i)
			}
		}
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "jobs.ivf")

	x := newIndex(t, 8)
	vecs := clustered(64, 8, 4, 9)
	if err := x.Build(vecs, 4); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := x.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	y := newIndex(t, 8)
	if err := y.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if y.Size() != x.Size() || y.NClusters() != x.NClusters() || y.BuildID() != x.BuildID() {
		t.Fatalf("loaded index differs: size %d/%d clusters %d/%d", y.Size(), x.Size(), y.NClusters(), x.NClusters())
	}

	want, _ := x.Search(vecs[3], 5)
	got, _ := y.Search(vecs[3], 5)
	if len(want) != len(got) {
		t.Fatalf("result length differs: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("hit %d differs: %+v vs %+v", i, want[i], got[i])
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPersist_Untrained(t *testing.T) {
	x := newIndex(t, 4)
	if err := x.Persist(filepath.Join(t.TempDir(), "x.ivf")); !errors.Is(err, domain.ErrIndexNotInitialized) {
		t.Fatalf("expected ErrIndexNotInitialized, got %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	x := newIndex(t, 4)
	err := x.Load(filepath.Join(t.TempDir(), "missing.ivf"))
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLoad_FormatErrors(t *testing.T) {
	dir := t.TempDir()
	x := newIndex(t, 4)
	_ = x.Build(clustered(16, 4, 2, 1), 2)
	good := filepath.Join(dir, "good.ivf")
	if err := x.Persist(good); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	data, _ := os.ReadFile(good)

	badVersion := append([]byte(nil), data...)
	badVersion[len(fileMagic)] = 99

	tests := map[string][]byte{
		"bad magic":   append([]byte("FAISS"), data[len(fileMagic):]...),
		"bad version": badVersion,
		"truncated":   data[:len(data)-7],
		"trailing":    append(append([]byte(nil), data...), 0),
		"empty":       {},
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.ivf")
			if err := os.WriteFile(path, content, 0o600); err != nil {
				t.Fatal(err)
			}
			y := newIndex(t, 4)
			if err := y.Load(path); !errors.Is(err, domain.ErrIndexLoad) {
				t.Fatalf("expected ErrIndexLoad, got %v", err)
			}
			if y.IsTrained() {
				t.Error("failed load must leave the index untouched")
			}
		})
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ivf")
	x := newIndex(t, 4)
	_ = x.Build(clustered(16, 4, 2, 1), 2)
	_ = x.Persist(path)

	y := newIndex(t, 8)
	err := y.Load(path)
	if !errors.Is(err, domain.ErrIndexLoad) || !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrIndexLoad wrapping a dimension mismatch, got %v", err)
	}
}
