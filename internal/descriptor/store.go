// Package descriptor reads and writes the extended-JSON descriptor files of
// the native host project (build profiles, module descriptors, resource
// tables, package manifests).
package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
	"github.com/titanous/json5"
)

// Document is the decoded root object of a descriptor file.
type Document = map[string]any

// ErrNotObject is returned when a descriptor's root value is not an object.
var ErrNotObject = errors.New("descriptor root is not an object")

// ParseError reports a descriptor file that exists but cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var encodeOptions = &oj.Options{Indent: 2, Sort: true, HTMLUnsafe: true}

// Store gives typed access to descriptor files on a billy filesystem.
// It holds no cached state; every Load reads the file again.
type Store struct {
	fs billy.Filesystem
}

// NewStore creates a Store over fsys.
func NewStore(fsys billy.Filesystem) *Store {
	return &Store{fs: fsys}
}

// FS returns the underlying filesystem.
func (s *Store) FS() billy.Filesystem { return s.fs }

// Exists reports whether path names an existing regular file.
func (s *Store) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile returns the raw bytes of path.
func (s *Store) ReadFile(path string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Load reads and decodes the object stored at path. A missing file yields an
// error wrapping fs.ErrNotExist; an undecodable one a *ParseError.
func (s *Store) Load(path string) (Document, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}

// Decode parses extended JSON (comments, trailing commas, unquoted keys)
// whose root must be an object. path only labels errors.
func Decode(path string, data []byte) (Document, error) {
	v, err := DecodeValue(path, data)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Path: path, Err: ErrNotObject}
	}
	return doc, nil
}

// DecodeValue parses any extended-JSON value. Integral numbers decode as
// int64; integers too large for it keep their literal digits.
func DecodeValue(path string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Path: path, Err: errors.New("empty file")}
	}
	if err := json5.Unmarshal(data, new(any)); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	// Decode again keeping number literals; the first pass rejects trailing
	// input the stream decoder would ignore.
	dec := json5.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	out, err := normalize(v)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return out, nil
}

// Encode renders v with two-space indentation, sorted keys and a trailing
// newline. The output for equal values is byte-identical.
func Encode(v any) []byte {
	return append([]byte(oj.JSON(v, encodeOptions)), '\n')
}

// Save encodes doc and writes it to path unless the file already holds the
// same bytes. It reports whether a write happened.
func (s *Store) Save(path string, doc any) (bool, error) {
	data := Encode(doc)
	if current, err := util.ReadFile(s.fs, path); err == nil && bytes.Equal(current, data) {
		return false, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := s.writeAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes to a temp file in the target directory, then renames it
// over path, keeping the original file mode when there is one.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := s.fs.TempFile(dir, ".hapsynth-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	if info, err := s.fs.Stat(path); err == nil {
		if ch, ok := s.fs.(billy.Change); ok {
			_ = ch.Chmod(tmpName, info.Mode())
		}
	} else {
		if ch, ok := s.fs.(billy.Change); ok {
			_ = ch.Chmod(tmpName, os.FileMode(0o644))
		}
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// normalize replaces number literals with int64 where the value is integral
// and fits, json.Number for larger integers, and float64 otherwise.
func normalize(v any) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		for k, child := range tv {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			tv[k] = n
		}
		return tv, nil
	case []any:
		for i, child := range tv {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			tv[i] = n
		}
		return tv, nil
	case json5.Number:
		return number(string(tv))
	default:
		return v, nil
	}
}

func number(lit string) (any, error) {
	if i, err := strconv.ParseInt(lit, 0, 64); err == nil {
		return i, nil
	}
	if bigIntRE.MatchString(lit) {
		return json.Number(strings.TrimPrefix(lit, "+")), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("number %s: %w", lit, err)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

var bigIntRE = regexp.MustCompile(`^[+-]?[1-9][0-9]*$`)
