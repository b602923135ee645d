// Package config loads the build configuration from hapsynth.{yaml,json,toml},
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/hapsynth/api"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name without extension.
const FileName = "hapsynth"

// EnvPrefix prefixes environment overrides, e.g. HAPSYNTH_PROJECT_PATH.
const EnvPrefix = "HAPSYNTH"

// Config keys.
const (
	KeySourceRoot    = "source_root"
	KeyOutputRoot    = "output_root"
	KeyProjectPath   = "project_path"
	KeyName          = "name"
	KeyHapName       = "hap_name"
	KeyDesignWidth   = "design_width"
	KeyVariant       = "variant"
	KeyUseJSON5      = "use_json5"
	KeyUseETS        = "use_ets"
	KeyAppID         = "app_id"
	KeyPages         = "pages"
	KeyEnv           = "env"
	KeyFrameworkExts = "framework_exts"
	KeyCommonChunks  = "common_chunks"
	KeyNative        = "native"
)

var (
	ErrProjectPathEmpty = errors.New("project_path is required")
	ErrUnknownVariant   = errors.New("unknown descriptor variant")
	ErrNoPages          = errors.New("no pages configured")
	ErrConfigExists     = errors.New("config file already exists")
)

// File is the on-disk shape of the config file.
type File struct {
	SourceRoot    string                 `mapstructure:"source_root" yaml:"source_root"`
	OutputRoot    string                 `mapstructure:"output_root" yaml:"output_root"`
	ProjectPath   string                 `mapstructure:"project_path" yaml:"project_path"`
	Name          string                 `mapstructure:"name" yaml:"name"`
	HapName       string                 `mapstructure:"hap_name" yaml:"hap_name"`
	DesignWidth   int                    `mapstructure:"design_width" yaml:"design_width"`
	Variant       string                 `mapstructure:"variant" yaml:"variant,omitempty"`
	UseJSON5      bool                   `mapstructure:"use_json5" yaml:"use_json5"`
	UseETS        bool                   `mapstructure:"use_ets" yaml:"use_ets"`
	AppID         string                 `mapstructure:"app_id" yaml:"app_id"`
	Pages         []string               `mapstructure:"pages" yaml:"pages"`
	Env           string                 `mapstructure:"env" yaml:"env"`
	FrameworkExts []string               `mapstructure:"framework_exts" yaml:"framework_exts,omitempty"`
	CommonChunks  []string               `mapstructure:"common_chunks" yaml:"common_chunks,omitempty"`
	Native        api.NativeDependencies `mapstructure:"native" yaml:"native,omitempty"`
}

// Defaults returns the values used for keys absent from every source.
func Defaults() File {
	return File{
		SourceRoot:  "src",
		OutputRoot:  "dist",
		Name:        "default",
		HapName:     "entry",
		DesignWidth: api.DefaultDesignWidth,
		UseJSON5:    true,
		UseETS:      true,
		AppID:       "app",
		Env:         "harmony",
	}
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeySourceRoot, d.SourceRoot)
	v.SetDefault(KeyOutputRoot, d.OutputRoot)
	v.SetDefault(KeyProjectPath, "")
	v.SetDefault(KeyName, d.Name)
	v.SetDefault(KeyHapName, d.HapName)
	v.SetDefault(KeyDesignWidth, d.DesignWidth)
	v.SetDefault(KeyVariant, "")
	v.SetDefault(KeyUseJSON5, d.UseJSON5)
	v.SetDefault(KeyUseETS, d.UseETS)
	v.SetDefault(KeyAppID, d.AppID)
	v.SetDefault(KeyEnv, d.Env)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the command-line flags that override config keys. Flags
// that are not registered on fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyProjectPath: "project",
		KeyOutputRoot:  "output",
		KeyVariant:     "variant",
		KeyAppID:       "app-id",
		KeyDesignWidth: "design-width",
		KeyEnv:         "env",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file from appPath (unless v already names a file),
// then resolves and validates the build configuration. A missing config
// file in appPath is not an error.
func Load(v *viper.Viper, appPath string) (*api.BuildConfig, error) {
	appPath, err := filepath.Abs(appPath)
	if err != nil {
		return nil, fmt.Errorf("resolve app path: %w", err)
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(FileName)
		v.AddConfigPath(appPath)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return Resolve(f, appPath)
}

// Resolve turns a decoded file into a BuildConfig: relative paths are
// anchored at appPath and the variant is derived from use_json5 when unset.
func Resolve(f File, appPath string) (*api.BuildConfig, error) {
	if f.ProjectPath == "" {
		return nil, ErrProjectPathEmpty
	}
	if len(f.Pages) == 0 {
		return nil, ErrNoPages
	}

	variant := api.Variant(strings.ToLower(f.Variant))
	switch variant {
	case "":
		variant = api.VariantAbility
		if f.UseJSON5 {
			variant = api.VariantStage
		}
	case api.VariantStage, api.VariantAbility:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, f.Variant)
	}

	return &api.BuildConfig{
		AppPath:       appPath,
		SourceRoot:    f.SourceRoot,
		OutputRoot:    anchor(appPath, f.OutputRoot),
		ProjectPath:   anchor(appPath, f.ProjectPath),
		Name:          f.Name,
		HapName:       f.HapName,
		DesignWidth:   api.FixedWidth(f.DesignWidth),
		Variant:       variant,
		UseJSON5:      f.UseJSON5,
		UseETS:        f.UseETS,
		AppID:         f.AppID,
		Pages:         f.Pages,
		Env:           f.Env,
		FrameworkExts: f.FrameworkExts,
		CommonChunks:  api.ResolveCommonChunks(f.CommonChunks, nil),
		Native:        f.Native,
	}, nil
}

func anchor(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// Starter returns the content written by WriteDefault.
func Starter(projectPath string) File {
	f := Defaults()
	f.ProjectPath = projectPath
	f.OutputRoot = filepath.Join(projectPath, f.HapName, "src", "main", "ets")
	f.Pages = []string{"pages/index/index"}
	return f
}

// WriteDefault writes a starter YAML config to path. An existing file is
// left alone unless force is set.
func WriteDefault(path string, f File, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
