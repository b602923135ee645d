// Package testfs provides billy filesystem helpers for tests.
package testfs

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// Recorder wraps a filesystem and counts completed writes per path. Writes
// made through a temp file count against the rename target.
type Recorder struct {
	billy.Filesystem

	mu     sync.Mutex
	writes map[string]int
}

// NewRecorder returns a Recorder over a fresh in-memory filesystem.
func NewRecorder() *Recorder {
	return &Recorder{Filesystem: memfs.New(), writes: map[string]int{}}
}

// Rename implements billy.Basic.
func (r *Recorder) Rename(from, to string) error {
	if err := r.Filesystem.Rename(from, to); err != nil {
		return err
	}
	r.record(to)
	return nil
}

// OpenFile implements billy.Basic.
func (r *Recorder) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	f, err := r.Filesystem.OpenFile(name, flag, perm)
	if err == nil && flag&(os.O_WRONLY|os.O_RDWR) != 0 && filepath.Base(name)[0] != '.' {
		r.record(name)
	}
	return f, err
}

// Create implements billy.Basic.
func (r *Recorder) Create(name string) (billy.File, error) {
	return r.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (r *Recorder) record(path string) {
	r.mu.Lock()
	r.writes[filepath.Clean(path)]++
	r.mu.Unlock()
}

// Writes returns how often path was written.
func (r *Recorder) Writes(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[filepath.Clean(path)]
}

// Total returns the number of writes across all paths.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.writes {
		n += c
	}
	return n
}

// Reset clears the counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.writes = map[string]int{}
	r.mu.Unlock()
}

// WriteFiles seeds fs with path → content pairs.
func WriteFiles(t testing.TB, fs billy.Filesystem, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := util.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, fs billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
