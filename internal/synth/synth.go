// Package synth produces the native host project's build profile and module
// descriptor from the resolved build configuration and page list.
package synth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/agentic-research/hapsynth/internal/resource"
)

// ErrUnexpectedShape is returned when a descriptor holds a value of the wrong
// type where an object or array is required. The file is left untouched.
var ErrUnexpectedShape = descriptor.ErrUnexpectedShape

// Result reports what one synthesis run did.
type Result struct {
	Variant        api.Variant
	DescriptorPath string
	// Written is true when the module descriptor file was rewritten.
	Written        bool
	ProfileWritten bool
	// PagesToken is the resource token the Stage page list was routed
	// through; empty for the Ability variant.
	PagesToken     string
	Pages          resource.Outcome
}

// Variant is one of the two mutually exclusive module descriptor schemas.
type Variant interface {
	Kind() api.Variant
	DescriptorPath() string
	Apply(ctx context.Context, pages []string) (Result, error)
}

// Synthesizer runs the shared build profile step followed by the variant
// chosen at construction.
type Synthesizer struct {
	cfg     *api.BuildConfig
	store   *descriptor.Store
	variant Variant
}

// New selects the variant for cfg. The variant never changes for the
// lifetime of the Synthesizer.
func New(cfg *api.BuildConfig, store *descriptor.Store, patcher *resource.Patcher) (*Synthesizer, error) {
	moduleDir := ModuleDir(cfg)
	var v Variant
	switch cfg.Variant {
	case api.VariantStage:
		v = &stageVariant{
			cfg:     cfg,
			store:   store,
			patcher: patcher,
			path:    filepath.Join(moduleDir, "module.json5"),
		}
	case api.VariantAbility:
		v = &abilityVariant{
			cfg:   cfg,
			store: store,
			path:  filepath.Join(moduleDir, "config.json"),
		}
	default:
		return nil, fmt.Errorf("unknown descriptor variant %q", cfg.Variant)
	}
	return &Synthesizer{cfg: cfg, store: store, variant: v}, nil
}

// ModuleDir is the directory holding the module descriptor and the resources
// tree: the parent of the output root.
func ModuleDir(cfg *api.BuildConfig) string {
	return filepath.Dir(filepath.Clean(cfg.OutputRoot))
}

// Variant returns the selected variant.
func (s *Synthesizer) Variant() Variant { return s.variant }

// Synthesize brings the build profile and module descriptor up to date with
// pages. Any error leaves the remaining files untouched; callers decide
// whether it is fatal.
func (s *Synthesizer) Synthesize(ctx context.Context, pages []string) (Result, error) {
	logger := ctxlog.FromContext(ctx)

	profileWritten, err := upsertBuildProfile(s.store, s.cfg)
	if err != nil {
		return Result{}, err
	}

	res, err := s.variant.Apply(ctx, pages)
	if err != nil {
		return Result{}, fmt.Errorf("%s descriptor %s: %w", s.variant.Kind(), s.variant.DescriptorPath(), err)
	}
	res.ProfileWritten = profileWritten

	logger.Info("Module descriptor synthesized.",
		"variant", res.Variant,
		"path", res.DescriptorPath,
		"pages", len(pages),
		"written", res.Written,
		"profile_written", profileWritten,
	)
	return res, nil
}

func window(cfg *api.BuildConfig) map[string]any {
	return map[string]any{
		"designWidth":     cfg.DesignWidth.Resolve(),
		"autoDesignWidth": false,
	}
}
