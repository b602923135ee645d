package pipeline

import (
	"context"
	"testing"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/assets"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/agentic-research/hapsynth/internal/discovery"
	"github.com/agentic-research/hapsynth/internal/testfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appDir      = "/app"
	projectDir  = "/proj"
	moduleDir   = projectDir + "/entry/src/main"
	outputRoot  = moduleDir + "/ets"
	stagePath   = moduleDir + "/module.json5"
	pagesTable  = moduleDir + "/resources/base/profile/main_pages.json"
	hapManifest = projectDir + "/entry/oh-package.json5"
)

func scaffold(t *testing.T, extra map[string]string) (*api.BuildConfig, *testfs.Recorder) {
	t.Helper()
	files := map[string]string{
		appDir + "/src/app.tsx":                        "export default function App() {}",
		appDir + "/src/pages/index/index.tsx":          "",
		appDir + "/src/pages/detail/index.harmony.tsx": "",
		projectDir + "/build-profile.json5":            `{modules: [{name: "entry", srcPath: "./entry"}]}`,
		stagePath:                                      `{module: {name: "entry"}}`,
		pagesTable:                                     `{"src": []}`,
		hapManifest:                                    `{name: "entry", dependencies: {}}`,
	}
	for k, v := range extra {
		files[k] = v
	}
	fs := testfs.NewRecorder()
	testfs.WriteFiles(t, fs, files)
	fs.Reset()

	cfg := &api.BuildConfig{
		AppPath:     appDir,
		SourceRoot:  "src",
		OutputRoot:  outputRoot,
		ProjectPath: projectDir,
		Name:        "entry",
		HapName:     "entry",
		AppID:       "app",
		Variant:     api.VariantStage,
		UseJSON5:    true,
		UseETS:      true,
		Env:         "harmony",
		Pages:       []string{"pages/index/index", "pages/detail/index"},
		Native: api.NativeDependencies{
			Dependencies: map[string]string{"@ohos/lottie": "2.0.0"},
		},
	}
	return cfg, fs
}

func newHost(fs *testfs.Recorder) *FSHost {
	return NewFSHost(fs, outputRoot, discovery.DefaultFrameworkExts, "harmony")
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg, fs := scaffold(t, nil)
	var finished []api.BuildResult
	cfg.OnBuildFinish = func(r api.BuildResult) { finished = append(finished, r) }

	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, pc.BuildStart(ctx, newHost(fs)))
	assert.Equal(t, appDir+"/src/app.tsx", pc.AppEntryPath())
	assert.Equal(t, []string{"pages/index/index", "pages/detail/index"}, pc.Routes())
	assert.Equal(t, appDir+"/src/pages/detail/index.harmony.tsx", pc.Pages()[1].ScriptPath)

	pc.RecordNativeDependencies(map[string]string{"@ohos/axios": "2.1.0"}, map[string]string{"@ohos/hypium": "1.0.6"})

	res, err := pc.CloseBundle(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, finished, 1)
	assert.Equal(t, res, finished[0])

	store := descriptor.NewStore(fs)
	table, err := store.Load(pagesTable)
	require.NoError(t, err)
	assert.Equal(t, []any{"pages/index/index", "pages/detail/index"}, table["src"])

	mod, err := store.Load(stagePath)
	require.NoError(t, err)
	v, _, err := descriptor.Lookup(mod, "$.module.abilities[0].name")
	require.NoError(t, err)
	assert.Equal(t, "app", v)

	pkg, err := store.Load(hapManifest)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"@ohos/lottie": "2.0.0", "@ohos/axios": "2.1.0"}, pkg["dependencies"])
	assert.Equal(t, map[string]any{"@ohos/hypium": "1.0.6"}, pkg["devDependencies"])
}

func TestBuild_RebuildIsNoOp(t *testing.T) {
	cfg, fs := scaffold(t, nil)
	cfg.IsWatch = true
	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()
	host := newHost(fs)

	require.NoError(t, pc.BuildStart(ctx, host))
	_, err = pc.CloseBundle(ctx)
	require.NoError(t, err)
	fs.Reset()

	require.NoError(t, pc.BuildStart(ctx, host))
	res, err := pc.CloseBundle(ctx)
	require.NoError(t, err)
	assert.True(t, res.IsWatch)
	assert.Zero(t, fs.Total())
}

func TestBuild_SynthesisFailureIsWarning(t *testing.T) {
	cfg, fs := scaffold(t, map[string]string{stagePath: `{module: `})
	var got api.BuildResult
	cfg.OnBuildFinish = func(r api.BuildResult) { got = r }

	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, pc.BuildStart(ctx, newHost(fs)))

	res, err := pc.CloseBundle(ctx)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], stagePath)
	assert.Equal(t, res.Warnings, got.Warnings)
	assert.Zero(t, fs.Writes(stagePath))
	assert.Equal(t, 1, fs.Writes(hapManifest))
}

func TestBuild_MissingPageIsFatal(t *testing.T) {
	cfg, fs := scaffold(t, nil)
	cfg.Pages = append(cfg.Pages, "pages/missing/index")
	pc, err := New(cfg, fs)
	require.NoError(t, err)

	err = pc.BuildStart(context.Background(), newHost(fs))
	var rerr *discovery.RouteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "pages/missing/index", rerr.Route)

	_, err = pc.CloseBundle(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestBuild_MissingAppEntry(t *testing.T) {
	cfg, fs := scaffold(t, nil)
	require.NoError(t, fs.Remove(appDir+"/src/app.tsx"))
	pc, err := New(cfg, fs)
	require.NoError(t, err)

	err = pc.BuildStart(context.Background(), newHost(fs))
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestBuild_CorruptManifestFailsBuild(t *testing.T) {
	cfg, fs := scaffold(t, map[string]string{hapManifest: `{dependencies: `})
	var got api.BuildResult
	cfg.OnBuildFinish = func(r api.BuildResult) { got = r }
	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, pc.BuildStart(ctx, newHost(fs)))

	_, err = pc.CloseBundle(ctx)
	var perr *descriptor.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, err, got.Err)
}

func TestLoadAsset(t *testing.T) {
	big := make([]byte, 4096)
	cfg, fs := scaffold(t, map[string]string{
		appDir + "/src/assets/logo.png":   "png",
		appDir + "/src/assets/banner.jpg": string(big),
	})
	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()
	host := newHost(fs)
	require.NoError(t, pc.BuildStart(ctx, host))

	code, outcome, err := pc.LoadAsset(ctx, host, appDir+"/src/assets/logo.png")
	require.NoError(t, err)
	assert.Equal(t, assets.Inlined, outcome)
	assert.Equal(t, `export default "data:image/png;base64,cG5n"`, code)

	code, outcome, err = pc.LoadAsset(ctx, host, appDir+"/src/assets/banner.jpg")
	require.NoError(t, err)
	assert.Equal(t, assets.Emitted, outcome)
	assert.Equal(t, `export default "__VITE_ASSET__0__"`, code)
	assert.Equal(t, []string{outputRoot + "/assets/banner.jpg"}, host.Emitted())
	assert.Len(t, testfs.ReadFile(t, fs, outputRoot+"/assets/banner.jpg"), 4096)
}

func TestFSHost_ResolveModule(t *testing.T) {
	_, fs := scaffold(t, nil)
	host := newHost(fs)
	ctx := context.Background()

	got, err := host.ResolveModule(ctx, "./pages/index/index", appDir+"/src/app.tsx")
	require.NoError(t, err)
	assert.Equal(t, appDir+"/src/pages/index/index.tsx", got)

	got, err = host.ResolveModule(ctx, appDir+"/src/pages/detail/index", "")
	require.NoError(t, err)
	assert.Equal(t, appDir+"/src/pages/detail/index.harmony.tsx", got)

	_, err = host.ResolveModule(ctx, "@tarojs/taro", appDir+"/src/app.tsx")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestScanAssets(t *testing.T) {
	cfg, fs := scaffold(t, map[string]string{
		appDir + "/src/assets/logo.png":      "png",
		appDir + "/src/assets/font.ttf":      string(make([]byte, 16*1024)),
		appDir + "/src/.cache/skipped.png":   "png",
		appDir + "/src/pages/index/index.md": "# notes",
	})
	pc, err := New(cfg, fs)
	require.NoError(t, err)
	ctx := context.Background()
	host := newHost(fs)
	require.NoError(t, pc.BuildStart(ctx, host))

	stats, err := pc.ScanAssets(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, AssetStats{Inlined: 1, Emitted: 1}, stats)
	assert.Equal(t, []string{outputRoot + "/assets/font.ttf"}, host.Emitted())
}
