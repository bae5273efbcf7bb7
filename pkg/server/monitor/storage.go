package monitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultRefresh is how long a computed directory size is reused.
const DefaultRefresh = 10 * time.Second

// DirUsage is the disk usage of the cache directory.
type DirUsage struct {
	Path      string  `json:"path"`
	UsedBytes int64   `json:"used_bytes"`
	MaxBytes  int64   `json:"max_bytes,omitempty"`
	Percent   float64 `json:"percent,omitempty"`
	Files     int     `json:"files"`
}

// StorageMonitor reports cache directory usage, caching the result because
// walking the directory is expensive.
type StorageMonitor struct {
	dir     string
	max     int64
	refresh time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    DirUsage
	lastCheck time.Time
}

// NewStorageMonitor creates a monitor for dir. max is informational (0 = no
// limit).
func NewStorageMonitor(dir string, max int64) *StorageMonitor {
	return &StorageMonitor{dir: dir, max: max, refresh: DefaultRefresh, now: time.Now}
}

// Usage returns the directory usage, recomputed at most once per refresh
// interval. A directory that does not exist yet has zero usage.
func (sm *StorageMonitor) Usage() (DirUsage, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && sm.now().Sub(sm.lastCheck) < sm.refresh {
		return sm.cached, nil
	}

	u := DirUsage{Path: sm.dir, MaxBytes: sm.max}
	used, files, err := dirSize(sm.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DirUsage{}, err
	}
	u.UsedBytes, u.Files = used, files
	if sm.max > 0 {
		u.Percent = float64(used) / float64(sm.max) * 100
	}
	sm.cached = u
	sm.lastCheck = sm.now()
	return u, nil
}

// Limit returns the configured limit in bytes.
func (sm *StorageMonitor) Limit() int64 {
	return sm.max
}

// dirSize sums the allocated size of every file under path.
func dirSize(path string) (int64, int, error) {
	var size int64
	var files int
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files++
		if actual, err := getActualFileSize(p, info); err == nil {
			size += actual
		} else {
			size += info.Size()
		}
		return nil
	})
	return size, files, err
}

// getActualFileSize is implemented per platform:
// - filesize_unix.go: stat blocks
// - filesize_windows.go: GetCompressedFileSizeW
