package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/hapsynth/api"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "hapsynth.yaml", `
project_path: ../harmony
output_root: ../harmony/entry/src/main/ets
app_id: main
design_width: 375
pages:
  - pages/index/index
  - pages/detail/index
native:
  dependencies:
    "@ohos/axios": "2.1.0"
`)

	cfg, err := Load(New(), dir)
	require.NoError(t, err)

	parent := filepath.Dir(dir)
	assert.Equal(t, dir, cfg.AppPath)
	assert.Equal(t, filepath.Join(parent, "harmony"), cfg.ProjectPath)
	assert.Equal(t, filepath.Join(parent, "harmony", "entry", "src", "main", "ets"), cfg.OutputRoot)
	assert.Equal(t, "main", cfg.AppID)
	assert.Equal(t, 375, cfg.DesignWidth.Resolve())
	assert.Equal(t, []string{"pages/index/index", "pages/detail/index"}, cfg.Pages)
	assert.Equal(t, api.VariantStage, cfg.Variant)
	assert.Equal(t, "src", cfg.SourceRoot)
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, "entry", cfg.HapName)
	assert.Equal(t, "harmony", cfg.Env)
	assert.True(t, cfg.UseETS)
	assert.Equal(t, api.DefaultCommonChunks, cfg.CommonChunks)
	assert.Equal(t, "2.1.0", cfg.Native.Dependencies["@ohos/axios"])
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "hapsynth.json", `{"project_path": "/abs/proj", "use_json5": false, "pages": ["pages/a"]}`)

	cfg, err := Load(New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/abs/proj", cfg.ProjectPath)
	assert.False(t, cfg.UseJSON5)
	assert.Equal(t, api.VariantAbility, cfg.Variant)
	assert.Equal(t, filepath.Join(dir, "dist"), cfg.OutputRoot)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "hapsynth.yaml", "project_path: /from/file\napp_id: file\npages: [pages/a]\n")
	t.Setenv("HAPSYNTH_APP_ID", "env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("project", "", "")
	fs.String("variant", "", "")
	require.NoError(t, fs.Parse([]string{"--project", "/from/flag", "--variant", "ability"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, dir)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.ProjectPath)
	assert.Equal(t, "env", cfg.AppID)
	assert.Equal(t, api.VariantAbility, cfg.Variant)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	writeConfig(t, dir, "custom.toml", "project_path = \"/p\"\npages = [\"pages/x\"]\n")

	v := New()
	v.SetConfigFile(path)
	cfg, err := Load(v, dir)
	require.NoError(t, err)
	assert.Equal(t, "/p", cfg.ProjectPath)

	v = New()
	v.SetConfigFile(filepath.Join(dir, "missing.yaml"))
	_, err = Load(v, dir)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "missing file", wantErr: ErrProjectPathEmpty},
		{name: "no pages", content: "project_path: /p\n", wantErr: ErrNoPages},
		{name: "unknown variant", content: "project_path: /p\npages: [a]\nvariant: hybrid\n", wantErr: ErrUnknownVariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				writeConfig(t, dir, "hapsynth.yaml", tt.content)
			}
			_, err := Load(New(), dir)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hapsynth.yaml")

	require.NoError(t, WriteDefault(path, Starter("/work/harmony"), false))
	assert.ErrorIs(t, WriteDefault(path, Starter("/other"), false), ErrConfigExists)

	cfg, err := Load(New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/work/harmony", cfg.ProjectPath)
	assert.Equal(t, "/work/harmony/entry/src/main/ets", cfg.OutputRoot)
	assert.Equal(t, []string{"pages/index/index"}, cfg.Pages)
	assert.Equal(t, api.VariantStage, cfg.Variant)

	require.NoError(t, WriteDefault(path, Starter("/other"), true))
	cfg, err = Load(New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/other", cfg.ProjectPath)
}
