// Package hdf5 reads result archives stored as HDF5 files.
//
// Each Group call opens the file, copies one subtree into memory and closes
// the file again, holding a shared flock for the duration so a writer
// replacing the archive cannot interleave with the read.
package hdf5

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gonum.org/v1/hdf5"

	"github.com/nicktill/energyview/pkg/archive"
)

const lockRetryDelay = 50 * time.Millisecond

// Source is an HDF5 archive on disk.
type Source struct {
	path string
}

// NewSource returns a source for the file at path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Name returns the file path.
func (s *Source) Name() string { return s.path }

// Identity hashes the file bytes.
func (s *Source) Identity(ctx context.Context) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return archive.Digest(f)
}

// Open checks that the file exists. The HDF5 handle itself is acquired per
// group read.
func (s *Source) Open(ctx context.Context) (archive.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open archive: %s is a directory", s.path)
	}
	return &fileArchive{path: s.path}, nil
}

type fileArchive struct {
	path   string
	closed bool
}

func (a *fileArchive) Close() error {
	a.closed = true
	return nil
}

func (a *fileArchive) Group(ctx context.Context, path string) (*archive.Group, error) {
	if a.closed {
		return nil, fmt.Errorf("archive %s is closed", a.path)
	}

	lock := flock.New(a.path, flock.SetFlag(os.O_RDONLY))
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock archive: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock archive %s", a.path)
	}
	defer lock.Unlock()

	f, err := hdf5.OpenFile(a.path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	parts := splitPath(path)
	// LinkExists fails on intermediate paths that are missing, so walk one
	// component at a time.
	for i := range parts {
		if !f.LinkExists(strings.Join(parts[:i+1], "/")) {
			return nil, fmt.Errorf("%w: %s", archive.ErrMissingGroup, path)
		}
	}

	name := "/"
	if len(parts) > 0 {
		name = strings.Join(parts, "/")
	}
	g, err := f.OpenGroup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a group: %v", archive.ErrMalformedTree, path, err)
	}
	defer g.Close()

	label := ""
	if len(parts) > 0 {
		label = parts[len(parts)-1]
	}
	return readGroup(ctx, label, g)
}

// container is what hdf5.File and hdf5.Group have in common.
type container interface {
	NumObjects() (uint, error)
	ObjectNameByIndex(idx uint) (string, error)
	ObjectTypeByIndex(idx uint) (hdf5.GType, error)
	OpenGroup(name string) (*hdf5.Group, error)
	OpenDataset(name string) (*hdf5.Dataset, error)
}

func readGroup(ctx context.Context, name string, c container) (*archive.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := archive.NewGroup(name)
	n, err := c.NumObjects()
	if err != nil {
		return nil, fmt.Errorf("failed to list group %q: %w", name, err)
	}
	for i := uint(0); i < n; i++ {
		childName, err := c.ObjectNameByIndex(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read child %d of %q: %w", i, name, err)
		}
		kind, err := c.ObjectTypeByIndex(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read child %q of %q: %w", childName, name, err)
		}

		var child archive.Node
		switch kind {
		case hdf5.H5G_GROUP:
			sub, err := c.OpenGroup(childName)
			if err != nil {
				return nil, fmt.Errorf("failed to open group %q: %w", childName, err)
			}
			child, err = readGroup(ctx, childName, sub)
			sub.Close()
			if err != nil {
				return nil, err
			}
		case hdf5.H5G_DATASET:
			ds, err := c.OpenDataset(childName)
			if err != nil {
				return nil, fmt.Errorf("failed to open dataset %q: %w", childName, err)
			}
			arr, err := readDataset(ds)
			ds.Close()
			if err != nil {
				return nil, fmt.Errorf("dataset %q: %w", childName, err)
			}
			child = archive.NewLeaf(childName, arr)
		default:
			return nil, fmt.Errorf("%w: %q has unsupported object type %d", archive.ErrMalformedTree, childName, kind)
		}
		if err := out.Add(child); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readDataset(ds *hdf5.Dataset) (archive.Array, error) {
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return archive.Array{}, err
	}
	if len(dims) > 1 {
		return archive.Array{}, fmt.Errorf("%w: rank %d datasets are not supported", archive.ErrMalformedTree, len(dims))
	}
	count := space.SimpleExtentNPoints()
	scalar := len(dims) == 0

	dtype, err := ds.Datatype()
	if err != nil {
		return archive.Array{}, err
	}
	defer dtype.Close()

	arr, err := readValues(ds, dtype, count)
	if err != nil {
		return archive.Array{}, err
	}
	if scalar {
		return asScalar(arr)
	}
	return arr, nil
}

// readValues reads every element of ds. Numbers go through the library's
// conversion to native doubles and int64s, so big-endian and narrow types
// decode the same as native ones.
func readValues(ds *hdf5.Dataset, dtype *hdf5.Datatype, count int) (archive.Array, error) {
	switch class := dtype.Class(); class {
	case hdf5.T_FLOAT:
		out, err := readFloats(ds, count)
		if err != nil {
			return archive.Array{}, err
		}
		return archive.Float64s(out...), nil
	case hdf5.T_INTEGER:
		out, err := readInts(ds, count)
		if err != nil {
			return archive.Array{}, err
		}
		return archive.Int64s(out...), nil
	case hdf5.T_STRING:
		if dtype.IsVariableStr() {
			out, err := readVarStrings(ds, count)
			if err != nil {
				return archive.Array{}, err
			}
			return archive.Strings(out...), nil
		}
		size := int(dtype.Size())
		// Fixed-length strings are bytes, so the stored representation is
		// already what we want.
		raw := make([]byte, size*count)
		if count > 0 {
			if err := ds.Read(&raw); err != nil {
				return archive.Array{}, fmt.Errorf("failed to read: %w", err)
			}
		}
		return archive.ByteStrings(splitFixed(raw, size, count)...), nil
	default:
		return archive.Array{}, fmt.Errorf("%w: unsupported datatype class %d", archive.ErrMalformedTree, class)
	}
}

func splitFixed(raw []byte, size, count int) [][]byte {
	out := make([][]byte, count)
	for i := range out {
		out[i] = raw[i*size : (i+1)*size]
	}
	return out
}

func asScalar(a archive.Array) (archive.Array, error) {
	switch a.DType() {
	case archive.Float64:
		v, err := a.Floats()
		if err != nil {
			return archive.Array{}, err
		}
		return archive.ScalarFloat64(v[0]), nil
	case archive.Int64:
		v, err := a.Ints()
		if err != nil {
			return archive.Array{}, err
		}
		return archive.ScalarInt64(v[0]), nil
	default:
		b := a.RawBytes()
		s, err := archive.DecodeText(b[0])
		if err != nil {
			return archive.Array{}, err
		}
		return archive.ScalarString(s), nil
	}
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
