package synth

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/descriptor"
)

// BuildProfilePath returns the build profile location for cfg.
func BuildProfilePath(cfg *api.BuildConfig) string {
	name := "build-profile.json"
	if cfg.UseJSON5 {
		name = "build-profile.json5"
	}
	return filepath.Join(cfg.ProjectPath, name)
}

// upsertBuildProfile points modules[0] at the configured hap. Only name and
// srcPath are touched on an existing entry.
func upsertBuildProfile(store *descriptor.Store, cfg *api.BuildConfig) (bool, error) {
	path := BuildProfilePath(cfg)
	current, err := store.Load(path)
	if err != nil {
		return false, fmt.Errorf("build profile: %w", err)
	}

	next := descriptor.CloneDocument(current)
	srcPath := "./" + cfg.HapName
	modules, err := descriptor.Array(next, "modules")
	if err != nil {
		return false, fmt.Errorf("build profile %s: %w", path, err)
	}
	if len(modules) > 0 {
		target, ok := modules[0].(map[string]any)
		if !ok {
			return false, fmt.Errorf("build profile %s: modules[0]: %w", path, ErrUnexpectedShape)
		}
		target["name"] = cfg.Name
		target["srcPath"] = srcPath
	} else {
		modules = append(modules, map[string]any{
			"name":    cfg.Name,
			"srcPath": srcPath,
			"targets": []any{
				map[string]any{
					"name":            "default",
					"applyToProducts": []any{"default"},
				},
			},
		})
	}
	next["modules"] = modules

	return store.Save(path, next)
}
