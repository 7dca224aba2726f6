// Package discover finds source files and prose documents in a watched repo.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// FileEntry represents a discovered file.
type FileEntry struct {
	Path string // Relative to repo root, slash-separated
	Abs  string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	"vendor":        {},
	"target":        {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// filter decides which repo files are visible: tracked files when root is a
// git checkout, otherwise everything .gitignore does not exclude.
type filter struct {
	gitFiles map[string]struct{}
	gi       *ignore.GitIgnore
}

func newFilter(root string) *filter {
	f := &filter{gitFiles: gitLsFiles(root)}
	if f.gitFiles == nil {
		f.gi = loadGitignore(root)
	}
	return f
}

func (f *filter) visible(rel string) bool {
	if f.gitFiles != nil {
		_, ok := f.gitFiles[rel]
		return ok
	}
	return f.gi == nil || !f.gi.MatchesPath(rel)
}

// Sources returns every candidate source file under root, sorted by path.
// The comment-marker table decides later which of them can hold regions.
func Sources(root string) ([]FileEntry, error) {
	return walk(root, root, newFilter(root), func(string) bool { return true })
}

// Documents returns the prose documents under root with one of the given
// extensions. paths, relative to root, narrow the search to specific files
// or directories; empty means the whole tree.
func Documents(root string, paths, exts []string) ([]FileEntry, error) {
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	keep := func(rel string) bool {
		_, ok := extSet[strings.ToLower(filepath.Ext(rel))]
		return ok
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}

	f := newFilter(root)
	seen := make(map[string]struct{})
	var results []FileEntry
	for _, p := range paths {
		start := filepath.Join(root, filepath.FromSlash(p))
		entries, err := walk(root, start, f, keep)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, dup := seen[e.Path]; dup {
				continue
			}
			seen[e.Path] = struct{}{}
			results = append(results, e)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}

func walk(root, start string, f *filter, keep func(rel string) bool) ([]FileEntry, error) {
	info, err := os.Stat(start)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		rel, err := filepath.Rel(root, start)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		if !keep(rel) {
			return nil, nil
		}
		return []FileEntry{{Path: rel, Abs: start}}, nil
	}

	var results []FileEntry

	err = filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == start {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !f.visible(rel) || !keep(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Abs: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
