package resource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/ohler55/ojg/jp"
)

// ErrEntryNotFound is returned by Resolve when an element table has no record
// with the requested name.
var ErrEntryNotFound = errors.New("resource entry not found")

// ErrValueNotObject is returned when a value table patch is not an object.
var ErrValueNotObject = errors.New("value table patch must be an object")

// Outcome describes what a Patch call did.
type Outcome int

const (
	// Skipped means the token was invalid and no file was read or written.
	Skipped Outcome = iota
	// Unchanged means the table already held the patched value.
	Unchanged
	// Written means the table file was rewritten.
	Written
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Written:
		return "written"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Patcher upserts values into the resource tables below a module directory.
type Patcher struct {
	store   *descriptor.Store
	baseDir string
}

// NewPatcher returns a Patcher for the module rooted at moduleDir (the parent
// of the output root, e.g. entry/src/main).
func NewPatcher(store *descriptor.Store, moduleDir string) *Patcher {
	return &Patcher{
		store:   store,
		baseDir: filepath.Join(moduleDir, "resources", "base"),
	}
}

// TablePath returns the file that stores t.
func (p *Patcher) TablePath(t Token) string {
	if t.IsValue() {
		return filepath.Join(p.baseDir, "profile", t.Key+".json")
	}
	return filepath.Join(p.baseDir, "element", t.Kind+".json")
}

// Patch writes value under the table entry named by id. Invalid ids are
// logged and skipped. A missing or unparsable table is an error: the host
// scaffold is expected to ship every table it references.
func (p *Patcher) Patch(ctx context.Context, id string, value any) (Outcome, error) {
	tok, err := ParseToken(id)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Skipping resource patch.", "id", id, "error", err)
		return Skipped, nil
	}
	return p.PatchToken(ctx, tok, value)
}

// PatchToken is Patch for an already parsed token.
func (p *Patcher) PatchToken(ctx context.Context, tok Token, value any) (Outcome, error) {
	path := p.TablePath(tok)
	current, err := p.store.Load(path)
	if err != nil {
		return Unchanged, fmt.Errorf("load resource table %s: %w", tok, err)
	}

	next, err := apply(current, tok, value)
	if err != nil {
		return Unchanged, fmt.Errorf("patch %s: %w", tok, err)
	}

	written, err := p.store.Save(path, next)
	if err != nil {
		return Unchanged, err
	}
	if !written {
		return Unchanged, nil
	}
	ctxlog.FromContext(ctx).Debug("Resource table updated.", "token", tok.String(), "path", path)
	return Written, nil
}

// apply returns the patched copy of table; table itself is not modified.
func apply(table descriptor.Document, tok Token, value any) (descriptor.Document, error) {
	next := descriptor.CloneDocument(table)
	if tok.IsValue() {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, ErrValueNotObject
		}
		for k, v := range obj {
			next[k] = descriptor.Clone(v)
		}
		return next, nil
	}

	list, err := descriptor.Array(next, tok.Kind)
	if err != nil {
		return nil, err
	}
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok && rec["name"] == tok.Key {
			rec["value"] = descriptor.Clone(value)
			next[tok.Kind] = list
			return next, nil
		}
	}
	next[tok.Kind] = append(list, map[string]any{
		"name":  tok.Key,
		"value": descriptor.Clone(value),
	})
	return next, nil
}

// Resolve returns the value id refers to: the whole table for a value
// table, or the record value for an element table.
func (p *Patcher) Resolve(ctx context.Context, id string) (any, error) {
	tok, err := ParseToken(id)
	if err != nil {
		return nil, err
	}
	table, err := p.store.Load(p.TablePath(tok))
	if err != nil {
		return nil, fmt.Errorf("load resource table %s: %w", tok, err)
	}
	if tok.IsValue() {
		return table, nil
	}

	for _, rec := range jp.C(tok.Kind).W().Get(table) {
		if m, ok := rec.(map[string]any); ok && m["name"] == tok.Key {
			return m["value"], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, tok)
}
