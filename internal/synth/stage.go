package synth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/agentic-research/hapsynth/internal/resource"
)

// DefaultPagesToken is where a fresh Stage descriptor routes its page list.
const DefaultPagesToken = "$profile:main_pages"

const defaultAppID = "app"

type stageVariant struct {
	cfg     *api.BuildConfig
	store   *descriptor.Store
	patcher *resource.Patcher
	path    string
}

func (v *stageVariant) Kind() api.Variant      { return api.VariantStage }
func (v *stageVariant) DescriptorPath() string { return v.path }

// Apply updates module.json5. The page table is patched before the
// descriptor is saved, so a failed patch leaves the descriptor as it was.
func (v *stageVariant) Apply(ctx context.Context, pages []string) (Result, error) {
	current, err := v.store.Load(v.path)
	if err != nil {
		return Result{}, err
	}

	next := descriptor.CloneDocument(current)
	module, err := descriptor.Object(next, "module")
	if err != nil {
		return Result{}, err
	}

	appID := v.cfg.AppID
	if appID == "" {
		appID = defaultAppID
	}
	srcEntry, err := v.srcEntry(appID)
	if err != nil {
		return Result{}, err
	}

	module["name"] = v.cfg.Name
	module["mainElement"] = appID

	abilities, err := descriptor.Array(module, "abilities")
	if err != nil {
		return Result{}, fmt.Errorf("module.%w", err)
	}
	if len(abilities) > 0 {
		ability, ok := abilities[0].(map[string]any)
		if !ok {
			return Result{}, fmt.Errorf("module.abilities[0]: %w", ErrUnexpectedShape)
		}
		ability["name"] = appID
		ability["srcEntry"] = srcEntry
	} else {
		module["abilities"] = append(abilities, defaultAbility(appID, srcEntry))
	}

	token := DefaultPagesToken
	if existing, ok := module["pages"].(string); ok {
		token = existing
	} else {
		module["pages"] = token
	}

	outcome, err := v.patcher.Patch(ctx, token, map[string]any{
		"src":    descriptor.Strings(pages),
		"window": window(v.cfg),
	})
	if err != nil {
		return Result{}, err
	}

	written, err := v.store.Save(v.path, next)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Variant:        api.VariantStage,
		DescriptorPath: v.path,
		Written:        written,
		PagesToken:     token,
		Pages:          outcome,
	}, nil
}

// srcEntry is the emitted app entry relative to the descriptor's directory.
func (v *stageVariant) srcEntry(appID string) (string, error) {
	entry := filepath.Join(v.cfg.OutputRoot, appID+".ets")
	rel, err := filepath.Rel(filepath.Dir(v.path), entry)
	if err != nil {
		return "", fmt.Errorf("entry path: %w", err)
	}
	return "./" + filepath.ToSlash(rel), nil
}

// defaultAbility is written once, on the first build of a module without
// abilities. Later builds only refresh name and srcEntry.
func defaultAbility(appID, srcEntry string) map[string]any {
	return map[string]any{
		"name":                  appID,
		"srcEntry":              srcEntry,
		"description":           "$string:ability_desc",
		"icon":                  "$media:icon",
		"label":                 "$string:ability_label",
		"startWindowIcon":       "$media:icon",
		"startWindowBackground": "$color:start_window_background",
		"exported":              true,
	}
}
