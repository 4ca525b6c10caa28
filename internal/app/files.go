package app

import (
	"context"
	"io/fs"
	"path/filepath"

	"jeeveswatcher/internal/ignore"
)

// fileLister enumerates the files under a set of watch roots for the HTTP
// surface's /reindex and /config-reindex handlers, skipping directories
// ignored by gitignore just like the watcher's own initial scan.
type fileLister struct {
	roots []string
}

func (f *fileLister) WatchedFiles(ctx context.Context) ([]string, error) {
	filter, err := ignore.New(f.roots)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, root := range f.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if d.Name() == ".git" || d.Name() == "node_modules" {
					return fs.SkipDir
				}
				if filter.IsIgnored(path) {
					return fs.SkipDir
				}
				return nil
			}
			if filter.IsIgnored(path) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
