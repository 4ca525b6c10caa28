// Package ignore answers "is this path ignored?" against the nested
// .gitignore files of one or more watched repositories.
package ignore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
)

type entry struct {
	dir     string
	file    string
	matcher *gitignore.GitIgnore
}

type repo struct {
	root    string
	entries []entry // sorted deepest-first
}

// Filter discovers repo roots for a set of watch roots and answers ignore
// queries against their nested .gitignore files.
type Filter struct {
	mu    sync.RWMutex
	repos []*repo
}

// New builds a Filter by walking upward from each watch root to the nearest
// ancestor containing a .git directory, then discovering every nested
// .gitignore file under that root.
func New(watchRoots []string) (*Filter, error) {
	f := &Filter{}
	seen := map[string]bool{}
	for _, wr := range watchRoots {
		root, ok := findRepoRoot(wr)
		if !ok || seen[root] {
			continue
		}
		seen[root] = true
		r, err := buildRepo(root)
		if err != nil {
			return nil, err
		}
		f.repos = append(f.repos, r)
	}
	return f, nil
}

// findRepoRoot walks upward from start looking for a directory containing
// a .git subdirectory. It mirrors the upward-walk used by the corpus's
// skill-loader repo-root discovery.
func findRepoRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		dir = start
	}
	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func buildRepo(root string) (*repo, error) {
	r := &repo{root: root}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if base == ".git" || base == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		e, perr := loadEntry(path)
		if perr != nil {
			return nil
		}
		r.entries = append(r.entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDeepestFirst(r.entries)
	return r, nil
}

func loadEntry(file string) (entry, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return entry{}, err
	}
	lines := strings.Split(string(b), "\n")
	m := gitignore.CompileIgnoreLines(lines...)
	return entry{dir: filepath.Dir(file), file: file, matcher: m}, nil
}

func sortDeepestFirst(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].dir) > len(entries[j].dir)
	})
}

// IsIgnored reports whether path is ignored by any repo that contains it.
func (f *Filter) IsIgnored(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, r := range f.repos {
		if !isAncestor(r.root, abs) {
			continue
		}
		for _, e := range r.entries {
			if !isAncestor(e.dir, abs) {
				continue
			}
			rel, err := filepath.Rel(e.dir, abs)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if e.matcher.MatchesPath(rel) {
				return true
			}
		}
	}
	return false
}

// Invalidate reparses the .gitignore at ignoreFilePath, or removes it from
// the index if it no longer exists. If the file belongs to a repo not yet
// tracked, the repo is discovered and added.
func (f *Filter) Invalidate(ignoreFilePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	abs, err := filepath.Abs(ignoreFilePath)
	if err != nil {
		abs = ignoreFilePath
	}
	dir := filepath.Dir(abs)

	for _, r := range f.repos {
		if !isAncestor(r.root, abs) {
			continue
		}
		r.entries = removeEntry(r.entries, abs)
		if _, err := os.Stat(abs); err == nil {
			if e, perr := loadEntry(abs); perr == nil {
				r.entries = append(r.entries, e)
				sortDeepestFirst(r.entries)
			}
		}
		return nil
	}

	root, ok := findRepoRoot(dir)
	if !ok {
		return nil
	}
	r, err := buildRepo(root)
	if err != nil {
		return err
	}
	f.repos = append(f.repos, r)
	return nil
}

func removeEntry(entries []entry, file string) []entry {
	out := entries[:0]
	for _, e := range entries {
		if e.file != file {
			out = append(out, e)
		}
	}
	return out
}

func isAncestor(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if dir == path {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
