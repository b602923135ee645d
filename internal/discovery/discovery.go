// Package discovery resolves application routes to their page sources and
// page-level configuration.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Default extension lists.
var (
	DefaultFrameworkExts = []string{".js", ".jsx", ".ts", ".tsx"}
	DefaultNativeExts    = []string{".ets"}
	DefaultConfigExts    = []string{".json5", ".json", ".ts", ".js"}
)

const defaultCacheSize = 256

// RouteError reports a route whose script entry does not exist.
type RouteError struct {
	Route string
	Base  string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("page %q: no script entry found for %s", e.Route, e.Base)
}

// Page is the resolved identity and config of one route.
type Page struct {
	Name       string
	ScriptPath string
	// NativePath is empty unless a native sibling exists.
	NativePath string
	ConfigPath string
	Config     map[string]any
	IsNative   bool
}

// Callbacks lists the lifecycle callback fields (success, fail, complete)
// present in the page config, in that order.
func (p *Page) Callbacks() []string {
	var out []string
	for _, k := range []string{"success", "fail", "complete"} {
		if _, ok := p.Config[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// ConfigFile is a registered page config path with its parsed content.
type ConfigFile struct {
	Path    string
	Content map[string]any
}

// Options configures a Discoverer.
type Options struct {
	SourceDir     string
	FrameworkExts []string
	NativeExts    []string
	ConfigExts    []string
	Env           string
	CacheSize     int
}

// Discoverer resolves routes against a source tree. Results are cached for
// the lifetime of the Discoverer, keyed by the page's base path.
type Discoverer struct {
	fs    billy.Filesystem
	opts  Options
	cache *lru.Cache[string, *Page]

	mu          sync.Mutex
	configFiles []string
	filesConfig map[string]ConfigFile
}

// New returns a Discoverer over fsys.
func New(fsys billy.Filesystem, opts Options) (*Discoverer, error) {
	if len(opts.FrameworkExts) == 0 {
		opts.FrameworkExts = DefaultFrameworkExts
	}
	if len(opts.NativeExts) == 0 {
		opts.NativeExts = DefaultNativeExts
	}
	if len(opts.ConfigExts) == 0 {
		opts.ConfigExts = DefaultConfigExts
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *Page](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("page cache: %w", err)
	}
	return &Discoverer{
		fs:          fsys,
		opts:        opts,
		cache:       cache,
		filesConfig: map[string]ConfigFile{},
	}, nil
}

// Discover resolves route. An unresolvable script entry yields a
// *RouteError; an unparsable config file a *descriptor.ParseError.
func (d *Discoverer) Discover(ctx context.Context, route string) (*Page, error) {
	base := filepath.Join(d.opts.SourceDir, route)
	if page, ok := d.cache.Get(base); ok {
		return page, nil
	}

	logger := ctxlog.FromContext(ctx)
	scriptPath, ok := ResolveMainFile(d.fs, base, d.opts.FrameworkExts, d.opts.Env)
	if !ok {
		return nil, &RouteError{Route: route, Base: base}
	}
	nativePath, isNative := ResolveMainFile(d.fs, base, d.opts.NativeExts, d.opts.Env)
	if !isNative {
		nativePath = ""
	}

	configPath, _ := ResolveMainFile(d.fs, stripExt(scriptPath)+".config", d.opts.ConfigExts, d.opts.Env)
	config, err := d.readConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Name:       route,
		ScriptPath: scriptPath,
		NativePath: nativePath,
		ConfigPath: configPath,
		Config:     config,
		IsNative:   isNative,
	}
	d.register(route, page)
	d.cache.Add(base, page)
	logger.Debug("Page discovered.", "route", route, "script", scriptPath, "native", isNative)
	return page, nil
}

// DiscoverAll resolves routes in order and stops at the first failure.
func (d *Discoverer) DiscoverAll(ctx context.Context, routes []string) ([]*Page, error) {
	pages := make([]*Page, 0, len(routes))
	for _, r := range routes {
		p, err := d.Discover(ctx, r)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// ConfigFiles returns the registered config paths in discovery order.
func (d *Discoverer) ConfigFiles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.configFiles...)
}

// FilesConfig returns the "<route>.config" → config file map.
func (d *Discoverer) FilesConfig() map[string]ConfigFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]ConfigFile, len(d.filesConfig))
	for k, v := range d.filesConfig {
		out[k] = v
	}
	return out
}

// Invalidate drops every cached page; registered config files are kept.
func (d *Discoverer) Invalidate() {
	d.cache.Purge()
}

func (d *Discoverer) register(route string, page *Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filesConfig[route+".config"] = ConfigFile{Path: page.ConfigPath, Content: page.Config}
	for _, p := range d.configFiles {
		if p == page.ConfigPath {
			return
		}
	}
	d.configFiles = append(d.configFiles, page.ConfigPath)
}

// readConfig loads a page config; a missing file is an empty config.
func (d *Discoverer) readConfig(ctx context.Context, path string) (map[string]any, error) {
	data, err := util.ReadFile(d.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read page config %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".ts", ".js":
		return parseScriptConfig(ctx, path, data)
	case ".json", ".json5":
		return descriptor.Decode(path, data)
	default:
		return map[string]any{}, nil
	}
}
