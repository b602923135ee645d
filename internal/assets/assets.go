// Package assets turns imported static files into module code: small files
// are inlined as data URLs, larger ones are emitted through the host.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/agentic-research/hapsynth/internal/ctxlog"
)

// Kind classifies an asset by extension.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindFont
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFont:
		return "font"
	case KindMedia:
		return "media"
	default:
		return "none"
	}
}

// Default inlining limits in bytes. Files strictly smaller are inlined.
const (
	DefaultImageLimit = 2 * 1024
	DefaultFontLimit  = 10 * 1024
	DefaultMediaLimit = 10 * 1024
)

var (
	imageRE = regexp.MustCompile(`\.(png|jpe?g|gif|bpm|svg|webp)$`)
	fontRE  = regexp.MustCompile(`\.(woff2?|eot|ttf|otf)$`)
	mediaRE = regexp.MustCompile(`\.(mp4|webm|ogg|mp3|wav|flac|aac)$`)

	rawRE = regexp.MustCompile(`(?:\?|&)raw(?:&|$)`)
	urlRE = regexp.MustCompile(`(?:\?|&)url(?:&|$)`)
)

// Types missing from mime's builtin table; the system table varies by host.
var extraTypes = map[string]string{
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".ogg":   "audio/ogg",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".flac":  "audio/flac",
	".aac":   "audio/aac",
}

// Classify returns the asset kind of path; query and hash must be stripped.
func Classify(path string) Kind {
	switch {
	case imageRE.MatchString(path):
		return KindImage
	case fontRE.MatchString(path):
		return KindFont
	case mediaRE.MatchString(path):
		return KindMedia
	default:
		return KindNone
	}
}

// Outcome reports how Load handled an import.
type Outcome int

const (
	// Skipped means the id is not an asset this loader handles.
	Skipped Outcome = iota
	// Inlined means the asset became a data URL.
	Inlined
	// Emitted means the asset was written through the host.
	Emitted
)

func (o Outcome) String() string {
	switch o {
	case Inlined:
		return "inlined"
	case Emitted:
		return "emitted"
	default:
		return "skipped"
	}
}

// Emitter is the part of the bundler host the loader needs.
type Emitter interface {
	ReadSource(path string) ([]byte, error)
	// EmitFile stores an asset in the output and returns its reference id.
	EmitFile(name string, source []byte) (string, error)
}

// Options tune a Loader. Zero limits use the defaults.
type Options struct {
	SourceDir  string
	ImageLimit int
	FontLimit  int
	MediaLimit int
	// CommonJS switches the generated code from an ES default export to
	// module.exports.
	CommonJS bool
	// Name rewrites the emitted file name (relative to SourceDir).
	Name func(string) string
}

// Loader inlines or emits assets and caches the generated code per build.
type Loader struct {
	opts Options

	mu    sync.Mutex
	cache map[string]loaded
}

type loaded struct {
	url     string
	outcome Outcome
}

// NewLoader returns a Loader with an empty cache.
func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts, cache: map[string]loaded{}}
}

// Reset drops the per-build cache. Call it at build start.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.cache = map[string]loaded{}
	l.mu.Unlock()
}

// Load returns the module code for id and how it was produced. Virtual
// modules, ?raw and ?url imports and unknown extensions are Skipped with no
// code.
func (l *Loader) Load(ctx context.Context, host Emitter, id string) (string, Outcome, error) {
	if strings.HasPrefix(id, "\x00") || rawRE.MatchString(id) || urlRE.MatchString(id) {
		return "", Skipped, nil
	}
	id = CleanURL(id)
	kind := Classify(id)
	if kind == KindNone {
		return "", Skipped, nil
	}

	l.mu.Lock()
	res, ok := l.cache[id]
	l.mu.Unlock()
	if !ok {
		var err error
		res, err = l.load(ctx, host, id, kind)
		if err != nil {
			return "", Skipped, err
		}
		l.mu.Lock()
		l.cache[id] = res
		l.mu.Unlock()
	}

	if l.opts.CommonJS {
		return fmt.Sprintf("module.exports = %q", res.url), res.outcome, nil
	}
	return fmt.Sprintf("export default %q", res.url), res.outcome, nil
}

func (l *Loader) load(ctx context.Context, host Emitter, id string, kind Kind) (loaded, error) {
	source, err := host.ReadSource(id)
	if err != nil {
		return loaded{}, fmt.Errorf("read asset %s: %w", id, err)
	}

	if len(source) < l.limit(kind) {
		url := "data:" + MimeType(id) + ";base64," + base64.StdEncoding.EncodeToString(source)
		return loaded{url: url, outcome: Inlined}, nil
	}

	name := strings.TrimPrefix(id, l.opts.SourceDir+"/")
	if l.opts.Name != nil {
		name = l.opts.Name(name)
	}
	ref, err := host.EmitFile(name, source)
	if err != nil {
		return loaded{}, fmt.Errorf("emit asset %s: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Asset emitted.", "kind", kind.String(), "name", name, "size", len(source))
	return loaded{url: "__VITE_ASSET__" + ref + "__", outcome: Emitted}, nil
}

func (l *Loader) limit(kind Kind) int {
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	switch kind {
	case KindImage:
		return pick(l.opts.ImageLimit, DefaultImageLimit)
	case KindFont:
		return pick(l.opts.FontLimit, DefaultFontLimit)
	default:
		return pick(l.opts.MediaLimit, DefaultMediaLimit)
	}
}

// CleanURL strips the hash and query from an import id.
func CleanURL(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	return id
}

// MimeType returns the content type for path, or application/octet-stream.
func MimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
