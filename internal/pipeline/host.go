package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/agentic-research/hapsynth/internal/discovery"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrUnresolved is returned when a module id cannot be mapped to a file.
var ErrUnresolved = errors.New("module not resolved")

// Host is the bundler side of a build: it resolves imports, reads sources and
// stores emitted assets.
type Host interface {
	ResolveModule(ctx context.Context, id, importer string) (string, error)
	ReadSource(path string) ([]byte, error)
	EmitFile(name string, source []byte) (string, error)
}

// FSHost is a Host over a billy filesystem. Emitted files are written below
// OutputDir and referenced by sequence number.
type FSHost struct {
	fs        billy.Filesystem
	outputDir string
	exts      []string
	env       string

	mu      sync.Mutex
	emitted []string
}

// NewFSHost returns a host that resolves scripts with exts and env.
func NewFSHost(fsys billy.Filesystem, outputDir string, exts []string, env string) *FSHost {
	return &FSHost{fs: fsys, outputDir: outputDir, exts: exts, env: env}
}

// ResolveModule maps relative and absolute ids to a script file. Bare
// package ids are not resolved.
func (h *FSHost) ResolveModule(_ context.Context, id, importer string) (string, error) {
	var base string
	switch {
	case filepath.IsAbs(id):
		base = id
	case strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../"):
		base = filepath.Join(filepath.Dir(importer), id)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnresolved, id)
	}
	path, ok := discovery.ResolveMainFile(h.fs, base, h.exts, h.env)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, id)
	}
	return path, nil
}

// ReadSource implements Host.
func (h *FSHost) ReadSource(path string) ([]byte, error) {
	return util.ReadFile(h.fs, path)
}

// EmitFile implements Host.
func (h *FSHost) EmitFile(name string, source []byte) (string, error) {
	dest := filepath.Join(h.outputDir, name)
	if err := h.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	if err := util.WriteFile(h.fs, dest, source, 0o644); err != nil {
		return "", fmt.Errorf("write asset %s: %w", dest, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted = append(h.emitted, dest)
	return strconv.Itoa(len(h.emitted) - 1), nil
}

// Emitted returns the written asset paths, indexed by reference id.
func (h *FSHost) Emitted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.emitted...)
}
