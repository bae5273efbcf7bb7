package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/archive/hdf5"
)

// ErrSourceUnavailable is returned when an archive path cannot be opened.
var ErrSourceUnavailable = errors.New("server: archive unavailable")

// SourceOpener turns an archive path into a Source.
type SourceOpener func(path string) (archive.Source, error)

// OpenSource opens path as a YAML fixture when it ends in .yaml or .yml and as
// an HDF5 archive otherwise.
func OpenSource(path string) (archive.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		defer f.Close()
		root, err := archive.ReadYAML(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return archive.NewMemorySource(path, root), nil
	default:
		return hdf5.NewSource(path), nil
	}
}
