// Package deps merges resolved native packages into the host project's
// dependency manifest.
package deps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/descriptor"
)

// ManifestPath returns the manifest of the hap module that owns outputDir,
// three levels up (<hap>/src/main/ets).
func ManifestPath(outputDir string, useJSON5 bool) string {
	name := "package.json"
	if useJSON5 {
		name = "oh-package.json5"
	}
	return filepath.Join(outputDir, "..", "..", "..", name)
}

// Merge upserts deps and devDeps key by key. A missing manifest means the
// project has no native integration; Merge then does nothing and reports
// false. Existing entries not named in the input are kept.
func Merge(ctx context.Context, store *descriptor.Store, outputDir string, useJSON5 bool, deps, devDeps map[string]string) (bool, error) {
	path := ManifestPath(outputDir, useJSON5)
	logger := ctxlog.FromContext(ctx)
	if !store.Exists(path) {
		logger.Debug("No dependency manifest, skipping merge.", "path", path)
		return false, nil
	}

	current, err := store.Load(path)
	if err != nil {
		return false, fmt.Errorf("dependency manifest: %w", err)
	}

	next := descriptor.CloneDocument(current)
	if err := upsert(next, "dependencies", deps); err != nil {
		return false, fmt.Errorf("dependency manifest %s: %w", path, err)
	}
	if err := upsert(next, "devDependencies", devDeps); err != nil {
		return false, fmt.Errorf("dependency manifest %s: %w", path, err)
	}

	written, err := store.Save(path, next)
	if err != nil {
		return false, err
	}
	if written {
		logger.Info("Dependency manifest updated.", "path", path, "dependencies", len(deps), "dev_dependencies", len(devDeps))
	}
	return written, nil
}

func upsert(doc descriptor.Document, key string, entries map[string]string) error {
	section, err := descriptor.Object(doc, key)
	if err != nil {
		return err
	}
	for name, version := range entries {
		section[name] = version
	}
	return nil
}
