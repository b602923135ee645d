package discovery

import (
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// ResolveMainFile finds the file that backs base for one of exts. For every
// extension, in order, it tries the platform-specific variant before the
// plain one:
//
//	<base>.<env><ext>, <base>/index.<env><ext>, <base><ext>, <base>/index<ext>
//
// It reports false when nothing exists; the returned path is then base.
func ResolveMainFile(fsys billy.Basic, base string, exts []string, env string) (string, bool) {
	if ext := filepath.Ext(base); ext != "" && contains(exts, ext) && isFile(fsys, base) {
		return base, true
	}
	for _, ext := range exts {
		var candidates []string
		if env != "" {
			candidates = append(candidates,
				base+"."+env+ext,
				filepath.Join(base, "index."+env+ext),
			)
		}
		candidates = append(candidates,
			base+ext,
			filepath.Join(base, "index"+ext),
		)
		for _, c := range candidates {
			if isFile(fsys, c) {
				return c, true
			}
		}
	}
	return base, false
}

// stripExt removes the final extension of p.
func stripExt(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p))
}

func isFile(fsys billy.Basic, p string) bool {
	info, err := fsys.Stat(p)
	return err == nil && !info.IsDir()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
