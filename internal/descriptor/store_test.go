package descriptor

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, s *Store, path, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(s.FS(), path, []byte(content), 0o644))
}

func TestLoad_ExtendedJSON(t *testing.T) {
	s := NewStore(memfs.New())
	writeFile(t, s, "/proj/build-profile.json5", `{
  // modules built by the host
  modules: [
    {name: 'entry', srcPath: "./entry",},
  ],
  /* trailing */
  "app": {"version": 1,},
}`)

	doc, err := s.Load("/proj/build-profile.json5")
	require.NoError(t, err)

	modules, err := Array(doc, "modules")
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, "entry", modules[0].(map[string]any)["name"])
	assert.Equal(t, int64(1), doc["app"].(map[string]any)["version"])
}

func TestLoad_Errors(t *testing.T) {
	s := NewStore(memfs.New())

	t.Run("missing file", func(t *testing.T) {
		_, err := s.Load("/nope.json5")
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("malformed file carries path", func(t *testing.T) {
		writeFile(t, s, "/bad.json5", `{"a": `)
		_, err := s.Load("/bad.json5")
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "/bad.json5", perr.Path)
	})

	t.Run("non-object root", func(t *testing.T) {
		writeFile(t, s, "/arr.json", `[1, 2]`)
		_, err := s.Load("/arr.json")
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("empty file", func(t *testing.T) {
		writeFile(t, s, "/empty.json", "  \n")
		_, err := s.Load("/empty.json")
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestSave_IndentAndIdempotence(t *testing.T) {
	s := NewStore(memfs.New())
	doc := Document{
		"b":    Strings([]string{"pages/index"}),
		"a":    int64(750),
		"html": "<a & b>",
	}

	written, err := s.Save("/out/main_pages.json", doc)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := s.ReadFile("/out/main_pages.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 750,\n  \"b\": [\n    \"pages/index\"\n  ],\n  \"html\": \"<a & b>\"\n}\n", string(data))

	reloaded, err := s.Load("/out/main_pages.json")
	require.NoError(t, err)
	written, err = s.Save("/out/main_pages.json", reloaded)
	require.NoError(t, err)
	assert.False(t, written, "unchanged content must not be rewritten")

	again, err := s.ReadFile("/out/main_pages.json")
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	s := NewStore(memfs.New())
	_, err := s.Save("/dir/file.json", Document{"k": "v"})
	require.NoError(t, err)

	entries, err := s.FS().ReadDir("/dir")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.json", entries[0].Name())
}

func TestClone_IsDeep(t *testing.T) {
	orig := Document{"module": map[string]any{"pages": []any{"a"}}}
	cp := CloneDocument(orig)
	module, err := Object(cp, "module")
	require.NoError(t, err)
	pages, err := Array(module, "pages")
	require.NoError(t, err)
	module["pages"] = append(pages, "b")

	assert.Equal(t, []any{"a"}, orig["module"].(map[string]any)["pages"])
	assert.False(t, Equal(orig, cp))
	assert.True(t, Equal(orig, CloneDocument(orig)))
}

func TestLoad_Numbers(t *testing.T) {
	s := NewStore(memfs.New())
	writeFile(t, s, "/n.json5", `{big: 12345678901234567890, neg: -98765432109876543210, hex: 0x1F, exp: 1e3, frac: 0.5}`)

	doc, err := s.Load("/n.json5")
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), doc["big"])
	assert.Equal(t, int64(31), doc["hex"])
	assert.Equal(t, int64(1000), doc["exp"])
	assert.Equal(t, 0.5, doc["frac"])

	_, err = s.Save("/n.json5", doc)
	require.NoError(t, err)
	data, err := s.ReadFile("/n.json5")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"big": 12345678901234567890`)
	assert.Contains(t, string(data), `"neg": -98765432109876543210`)
}

func TestObjectAndArray(t *testing.T) {
	t.Run("absent or null is created", func(t *testing.T) {
		doc := Document{"module": nil}
		module, err := Object(doc, "module")
		require.NoError(t, err)
		module["name"] = "entry"
		assert.Equal(t, map[string]any{"name": "entry"}, doc["module"])

		list, err := Array(doc, "modules")
		require.NoError(t, err)
		assert.Nil(t, list)
	})

	t.Run("mistyped is reported and kept", func(t *testing.T) {
		doc := Document{
			"module":  []any{"x"},
			"modules": map[string]any{"custom": "user data"},
		}
		_, err := Object(doc, "module")
		assert.ErrorIs(t, err, ErrUnexpectedShape)
		assert.ErrorContains(t, err, "want object, got array")

		_, err = Array(doc, "modules")
		assert.ErrorIs(t, err, ErrUnexpectedShape)
		assert.Equal(t, map[string]any{"custom": "user data"}, doc["modules"])
		assert.Equal(t, []any{"x"}, doc["module"])
	})
}

func TestLookup(t *testing.T) {
	doc := Document{"module": map[string]any{
		"pages":     "$profile:main_pages",
		"abilities": []any{map[string]any{"name": "app"}},
	}}

	v, ok, err := Lookup(doc, "$.module.pages")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "$profile:main_pages", v)

	v, ok, err = Lookup(doc, "$.module.abilities[0].name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "app", v)

	_, ok, err = Lookup(doc, "$.module.missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
