package pattern

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Matched pairs a concrete path found on disk with the wildcard binding that
// the template extracted from it.
type Matched struct {
	Path    string
	Binding Binding
}

// staticRoot returns the longest directory prefix of the template that
// contains no placeholder. An empty result means the current directory.
func staticRoot(template string) string {
	loc := wildcardRe.FindStringIndex(template)
	if loc == nil {
		return filepath.Dir(template)
	}
	head := template[:loc[0]]
	slash := strings.LastIndexByte(head, '/')
	if slash < 0 {
		return "."
	}
	return head[:slash]
}

// Glob walks the filesystem under the template's static prefix and returns
// every file whose path matches the template, in lexical path order.
func Glob(template string) ([]Matched, error) {
	root := staticRoot(template)

	var found []Matched
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if binding, ok := Match(template, filepath.ToSlash(path)); ok {
			found = append(found, Matched{Path: filepath.ToSlash(path), Binding: binding})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}
