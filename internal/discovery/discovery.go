// Package discovery walks a resolved source directory and enumerates
// manifest files. It performs no evaluation — that's the evaluator's job.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/icepuma/keron/internal/manifest"
)

// Discover returns the manifest IDs found under root, ordered by sorted
// path — a pure function of the set of manifest paths, so the result is
// deterministic regardless of directory-entry order on disk.
//
// Hidden directories (leading '.') are skipped. Symlinked directories are
// followed once; a directory canonical path already visited is skipped to
// avoid cycles.
func Discover(root string) ([]manifest.ID, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	var found []string

	var walk func(dir string) error
	walk = func(dir string) error {
		canon, err := filepath.EvalSymlinks(dir)
		if err != nil {
			canon = dir
		}
		if visited[canon] {
			return nil
		}
		visited[canon] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			full := filepath.Join(dir, name)

			if e.IsDir() {
				if strings.HasPrefix(name, ".") {
					continue
				}
				if err := walk(full); err != nil {
					return err
				}
				continue
			}

			if e.Type()&fs.ModeSymlink != 0 {
				target, err := filepath.EvalSymlinks(full)
				if err != nil {
					continue
				}
				info, err := os.Stat(target)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if strings.HasPrefix(name, ".") {
						continue
					}
					if err := walk(full); err != nil {
						return err
					}
					continue
				}
				name = filepath.Base(target)
				full = target
			}

			if strings.HasSuffix(name, ".lua") {
				found = append(found, full)
			}
		}
		return nil
	}

	if err := walk(absRoot); err != nil {
		return nil, err
	}

	sort.Strings(found)

	ids := make([]manifest.ID, 0, len(found))
	for _, p := range found {
		id, err := manifest.Canon(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
