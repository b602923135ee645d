// Package pipeline wires page discovery, descriptor synthesis and dependency
// merging into the build-start and bundle-close hooks of a bundler host.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"strings"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/assets"
	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/deps"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/agentic-research/hapsynth/internal/discovery"
	"github.com/agentic-research/hapsynth/internal/resource"
	"github.com/agentic-research/hapsynth/internal/synth"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrNotStarted is returned by CloseBundle when BuildStart did not succeed.
var ErrNotStarted = errors.New("bundle closed before build start")

// AppEntry is the app script resolved below the source directory at build
// start.
const AppEntry = "app"

// Context is the state one build shares across host hooks. A Context is
// reusable across watch-mode rebuilds but not across concurrent builds.
type Context struct {
	cfg        *api.BuildConfig
	store      *descriptor.Store
	discoverer *discovery.Discoverer
	patcher    *resource.Patcher
	synth      *synth.Synthesizer
	assets     *assets.Loader

	started  bool
	appEntry string
	pages    []*discovery.Page
	deps     map[string]string
	devDeps  map[string]string
}

// New builds a Context for cfg over fsys.
func New(cfg *api.BuildConfig, fsys billy.Filesystem) (*Context, error) {
	store := descriptor.NewStore(fsys)
	disc, err := discovery.New(fsys, discovery.Options{
		SourceDir:     cfg.SourceDir(),
		FrameworkExts: cfg.FrameworkExts,
		Env:           cfg.Env,
	})
	if err != nil {
		return nil, err
	}
	patcher := resource.NewPatcher(store, synth.ModuleDir(cfg))
	s, err := synth.New(cfg, store, patcher)
	if err != nil {
		return nil, err
	}
	return &Context{
		cfg:        cfg,
		store:      store,
		discoverer: disc,
		patcher:    patcher,
		synth:      s,
		assets:     assets.NewLoader(assets.Options{SourceDir: cfg.SourceDir()}),
	}, nil
}

// Config returns the build configuration.
func (c *Context) Config() *api.BuildConfig { return c.cfg }

// Store returns the descriptor store.
func (c *Context) Store() *descriptor.Store { return c.store }

// Patcher returns the resource table patcher.
func (c *Context) Patcher() *resource.Patcher { return c.patcher }

// Discoverer returns the page discoverer.
func (c *Context) Discoverer() *discovery.Discoverer { return c.discoverer }

// Pages returns the pages found by the last BuildStart, in route order.
func (c *Context) Pages() []*discovery.Page { return c.pages }

// AppEntryPath returns the app script resolved by the last BuildStart.
func (c *Context) AppEntryPath() string { return c.appEntry }

// Routes returns the page names in configured order.
func (c *Context) Routes() []string {
	out := make([]string, len(c.pages))
	for i, p := range c.pages {
		out[i] = p.Name
	}
	return out
}

// BuildStart must run before the host emits anything. It resets per-build
// caches, resolves the app entry and discovers every configured page.
// Errors are fatal to the build.
func (c *Context) BuildStart(ctx context.Context, host Host) error {
	logger := ctxlog.FromContext(ctx)
	c.started = false
	c.assets.Reset()
	c.deps = maps.Clone(c.cfg.Native.Dependencies)
	c.devDeps = maps.Clone(c.cfg.Native.DevDependencies)

	entry, err := host.ResolveModule(ctx, "./"+AppEntry, filepath.Join(c.cfg.SourceDir(), "index"))
	if err != nil {
		return fmt.Errorf("app entry: %w", err)
	}
	c.appEntry = entry

	pages, err := c.discoverer.DiscoverAll(ctx, c.cfg.Pages)
	if err != nil {
		return err
	}
	c.pages = pages
	c.started = true

	logger.Info("Build started.", "entry", entry, "pages", len(pages), "variant", c.synth.Variant().Kind())
	return nil
}

// LoadAsset inlines or emits an imported asset; see assets.Loader.Load.
func (c *Context) LoadAsset(ctx context.Context, host Host, id string) (string, assets.Outcome, error) {
	return c.assets.Load(ctx, host, id)
}

// AssetStats counts the outcome of ScanAssets.
type AssetStats struct {
	Inlined int
	Emitted int
}

// ScanAssets loads every static asset below the source directory, standing
// in for a bundler that would load them on import. Dot directories are
// skipped.
func (c *Context) ScanAssets(ctx context.Context, host Host) (AssetStats, error) {
	var stats AssetStats
	err := util.Walk(c.store.FS(), c.cfg.SourceDir(), func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != c.cfg.SourceDir() && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if assets.Classify(path) == assets.KindNone {
			return nil
		}
		_, outcome, err := c.assets.Load(ctx, host, path)
		if err != nil {
			return err
		}
		switch outcome {
		case assets.Inlined:
			stats.Inlined++
		case assets.Emitted:
			stats.Emitted++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan assets: %w", err)
	}
	return stats, nil
}

// RecordNativeDependencies adds host packages resolved during the build.
// Later records win on version conflicts.
func (c *Context) RecordNativeDependencies(deps, devDeps map[string]string) {
	if c.deps == nil {
		c.deps = map[string]string{}
	}
	if c.devDeps == nil {
		c.devDeps = map[string]string{}
	}
	maps.Copy(c.deps, deps)
	maps.Copy(c.devDeps, devDeps)
}

// CloseBundle must run after all assets are emitted. It synthesizes the
// native descriptors, merges recorded dependencies and reports the result
// to OnBuildFinish. A synthesis failure is logged and surfaced as a warning;
// the build still succeeds. A corrupt dependency manifest fails the build.
func (c *Context) CloseBundle(ctx context.Context) (api.BuildResult, error) {
	logger := ctxlog.FromContext(ctx)
	if !c.started {
		return api.BuildResult{}, ErrNotStarted
	}
	result := api.BuildResult{IsWatch: c.cfg.IsWatch}

	if _, err := c.synth.Synthesize(ctx, c.Routes()); err != nil {
		logger.Warn("Native descriptor synthesis failed, native packaging skipped for this build.", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("native descriptor not updated: %v", err))
	}

	if _, err := deps.Merge(ctx, c.store, c.cfg.OutputRoot, c.cfg.UseJSON5, c.deps, c.devDeps); err != nil {
		result.Err = err
	}

	c.cleanup()
	if c.cfg.OnBuildFinish != nil {
		c.cfg.OnBuildFinish(result)
	}
	return result, result.Err
}

// cleanup forgets per-build state so a watch rebuild starts fresh.
func (c *Context) cleanup() {
	c.started = false
	c.deps = nil
	c.devDeps = nil
	c.discoverer.Invalidate()
}
