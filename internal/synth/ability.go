package synth

import (
	"context"
	"fmt"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/descriptor"
)

const pageAbilityType = "pageAbility"

type abilityVariant struct {
	cfg   *api.BuildConfig
	store *descriptor.Store
	path  string
}

func (v *abilityVariant) Kind() api.Variant      { return api.VariantAbility }
func (v *abilityVariant) DescriptorPath() string { return v.path }

// Apply upserts the module.js entry named after the module. When the entry
// already lists exactly these pages nothing is written, even if its mode or
// window differ.
func (v *abilityVariant) Apply(ctx context.Context, pages []string) (Result, error) {
	res := Result{Variant: api.VariantAbility, DescriptorPath: v.path}

	current, err := v.store.Load(v.path)
	if err != nil {
		return Result{}, err
	}

	next := descriptor.CloneDocument(current)
	module, err := descriptor.Object(next, "module")
	if err != nil {
		return Result{}, err
	}
	entries, err := descriptor.Array(module, "js")
	if err != nil {
		return Result{}, fmt.Errorf("module.%w", err)
	}

	syntax := "hml"
	if v.cfg.UseETS {
		syntax = "ets"
	}
	mode := map[string]any{"syntax": syntax, "type": pageAbilityType}
	routes := descriptor.Strings(pages)

	var target map[string]any
	for i, item := range entries {
		entry, ok := item.(map[string]any)
		if !ok {
			return Result{}, fmt.Errorf("module.js[%d]: %w", i, ErrUnexpectedShape)
		}
		if entry["name"] == v.cfg.Name {
			target = entry
			break
		}
	}

	if target != nil {
		if descriptor.Equal(target["pages"], routes) {
			ctxlog.FromContext(ctx).Debug("Ability pages unchanged, skipping descriptor write.", "path", v.path)
			return res, nil
		}
		target["mode"] = mode
		target["pages"] = routes
		target["window"] = window(v.cfg)
	} else {
		entries = append(entries, map[string]any{
			"name":   v.cfg.Name,
			"mode":   mode,
			"pages":  routes,
			"window": window(v.cfg),
		})
	}
	module["js"] = entries

	written, err := v.store.Save(v.path, next)
	if err != nil {
		return Result{}, err
	}
	res.Written = written
	return res, nil
}
