package api

import "path/filepath"

// Variant selects which module descriptor schema the host project uses.
type Variant string

const (
	// VariantStage is the lifecycle-staged model (module.json5).
	VariantStage Variant = "stage"
	// VariantAbility is the ability-based (FA) model (config.json).
	VariantAbility Variant = "ability"
)

// DefaultDesignWidth is used when the configured width resolves to zero.
const DefaultDesignWidth = 750

// DesignWidth is either a literal width or a function producing one.
type DesignWidth struct {
	Fixed int
	Func  func() int
}

// FixedWidth returns a literal DesignWidth.
func FixedWidth(w int) DesignWidth { return DesignWidth{Fixed: w} }

// WidthFunc returns a DesignWidth computed lazily by fn.
func WidthFunc(fn func() int) DesignWidth { return DesignWidth{Func: fn} }

// Resolve returns the effective width, falling back to DefaultDesignWidth.
func (d DesignWidth) Resolve() int {
	w := d.Fixed
	if d.Func != nil {
		w = d.Func()
	}
	if w == 0 {
		return DefaultDesignWidth
	}
	return w
}

// NativeDependencies are the host packages resolved for the native shell.
type NativeDependencies struct {
	Dependencies    map[string]string `mapstructure:"dependencies" yaml:"dependencies,omitempty"`
	DevDependencies map[string]string `mapstructure:"devDependencies" yaml:"devDependencies,omitempty"`
}

// BuildResult is passed to OnBuildFinish once the bundle is closed.
type BuildResult struct {
	Err      error
	IsWatch  bool
	Warnings []string
}

// BuildConfig is the resolved, per-invocation build description. It is
// treated as immutable once config loading has finished.
type BuildConfig struct {
	// AppPath is the root of the cross-platform project.
	AppPath    string
	SourceRoot string
	// OutputRoot is where bundled scripts are emitted, normally
	// <ProjectPath>/<HapName>/src/main/ets. Absolute after loading.
	OutputRoot string
	// ProjectPath is the root of the native host project.
	ProjectPath string

	Name        string
	HapName     string
	DesignWidth DesignWidth
	Variant     Variant
	UseJSON5    bool
	UseETS      bool
	AppID       string
	// Pages keeps the configured order; Pages[0] is the home page.
	Pages []string

	// Env is the multi-platform file suffix (index.harmony.tsx).
	Env           string
	FrameworkExts []string
	CommonChunks  []string
	Native        NativeDependencies

	IsWatch       bool
	OnBuildFinish func(BuildResult)
}

// SourceDir returns the absolute page source directory.
func (c *BuildConfig) SourceDir() string {
	return filepath.Join(c.AppPath, c.SourceRoot)
}

// DefaultCommonChunks are the shared chunk names used when none are configured.
var DefaultCommonChunks = []string{"runtime", "vendors", "taro", "common"}

// ResolveCommonChunks applies a user override, which may be a fixed list or a
// function receiving a copy of the defaults. Empty results fall back to the defaults.
func ResolveCommonChunks(list []string, fn func([]string) []string) []string {
	if fn != nil {
		defaults := append([]string(nil), DefaultCommonChunks...)
		if out := fn(defaults); len(out) > 0 {
			return out
		}
		return append([]string(nil), DefaultCommonChunks...)
	}
	if len(list) > 0 {
		return list
	}
	return append([]string(nil), DefaultCommonChunks...)
}
