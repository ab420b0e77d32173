package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// File layout (little endian):
//
//	magic "NMIVF" | version u16 | dim u32 | nClusters u32 | size u64 | buildID [16]
//	centroids nClusters*dim f32
//	per cluster: count u32, then count*(id i64, dim f32)
const (
	fileMagic   = "NMIVF"
	fileVersion = uint16(1)

	maxDim      = 1 << 16
	maxClusters = 1 << 20
)

// Persist writes the trained index to path atomically (temp file + rename).
func (x *IVF) Persist(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.centroids == nil {
		return domain.ErrIndexNotInitialized
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	if err := x.encode(w); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// Load replaces the index contents with the file at path.
// A missing file is domain.ErrIndexNotFound; any format problem is domain.ErrIndexLoad.
// On failure the current contents are left untouched.
func (x *IVF) Load(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return fmt.Errorf("%w: open %s: %w", domain.ErrIndexLoad, path, err)
	}
	defer f.Close()

	loaded, err := decode(bufio.NewReader(f), x.dim)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrIndexLoad, path, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.centroids = loaded.centroids
	x.lists = loaded.lists
	x.size = loaded.size
	x.buildID = loaded.buildID
	return nil
}

func (x *IVF) encode(w io.Writer) error {
	le := binary.LittleEndian
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return err
	}
	id, _ := x.buildID.MarshalBinary()
	header := []any{fileVersion, uint32(x.dim), uint32(len(x.centroids)), uint64(x.size), id}
	for _, v := range header {
		if err := binary.Write(w, le, v); err != nil {
			return err
		}
	}
	for _, c := range x.centroids {
		if err := binary.Write(w, le, c); err != nil {
			return err
		}
	}
	for _, list := range x.lists {
		if err := binary.Write(w, le, uint32(len(list))); err != nil {
			return err
		}
		for _, e := range list {
			if err := binary.Write(w, le, e.id); err != nil {
				return err
			}
			if err := binary.Write(w, le, e.vec); err != nil {
				return err
			}
		}
	}
	return nil
}

type decoded struct {
	centroids [][]float32
	lists     [][]entry
	size      int64
	buildID   uuid.UUID
}

func decode(r io.Reader, wantDim int) (decoded, error) {
	le := binary.LittleEndian
	var out decoded

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return out, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return out, fmt.Errorf("bad magic %q", magic)
	}

	var (
		version        uint16
		dim, nClusters uint32
		size           uint64
		id             [16]byte
	)
	if err := binary.Read(r, le, &version); err != nil {
		return out, fmt.Errorf("read version: %w", err)
	}
	if version != fileVersion {
		return out, fmt.Errorf("unsupported format version %d", version)
	}
	for _, v := range []any{&dim, &nClusters, &size, &id} {
		if err := binary.Read(r, le, v); err != nil {
			return out, fmt.Errorf("read header: %w", err)
		}
	}
	if dim == 0 || dim > maxDim || nClusters == 0 || nClusters > maxClusters || size > math.MaxInt64 {
		return out, fmt.Errorf("implausible header dim=%d clusters=%d size=%d", dim, nClusters, size)
	}
	if int(dim) != wantDim {
		return out, domain.NewDimensionError(wantDim, int(dim))
	}
	out.buildID = uuid.UUID(id)

	out.centroids = make([][]float32, nClusters)
	for i := range out.centroids {
		c := make([]float32, dim)
		if err := binary.Read(r, le, c); err != nil {
			return out, fmt.Errorf("read centroid %d: %w", i, err)
		}
		out.centroids[i] = c
	}

	out.lists = make([][]entry, nClusters)
	var total uint64
	for i := range out.lists {
		var n uint32
		if err := binary.Read(r, le, &n); err != nil {
			return out, fmt.Errorf("read list %d length: %w", i, err)
		}
		total += uint64(n)
		if total > size {
			return out, fmt.Errorf("list %d overflows declared size %d", i, size)
		}
		list := make([]entry, n)
		for j := range list {
			list[j].vec = make([]float32, dim)
			if err := binary.Read(r, le, &list[j].id); err != nil {
				return out, fmt.Errorf("read list %d entry %d: %w", i, j, err)
			}
			if err := binary.Read(r, le, list[j].vec); err != nil {
				return out, fmt.Errorf("read list %d entry %d: %w", i, j, err)
			}
		}
		out.lists[i] = list
	}
	if total != size {
		return out, fmt.Errorf("lists hold %d vectors, header declares %d", total, size)
	}
	if _, err := r.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		return out, errors.New("trailing data after index")
	}
	out.size = int64(size)
	return out, nil
}
