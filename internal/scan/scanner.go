// Package scan walks a repository tree and yields the files eligible for
// chunking, pruning a fixed set of directory names and filtering by
// extension and size.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hermes-search/hermes/internal/herrors"
)

// MaxFileBytes is the largest file the scanner will yield.
const MaxFileBytes = 1 << 20 // 1 MiB

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	"venv": true, ".venv": true, "dist": true, "build": true,
	"vendor": true, "third_party": true, "artifacts": true, "reports": true,
}

// File is a single scanned, eligible-for-chunking source file.
type File struct {
	AbsPath  string
	RelPath  string
	Language string
	Size     int64
}

func shouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return skipDirs[name]
}

// Scan walks root and returns every eligible file. Output order is
// deterministic (lexical by relative path) for testability, though
// callers must not depend on scan order for chunk-id assignment — that is
// fixed later by the metadata store's insertion order.
func Scan(root string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return herrors.IoError(err, "walking %q", path)
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := DetectLanguage(path)
		if !ok || !IsCodeLanguage(lang) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		size := info.Size()
		if size == 0 || size > MaxFileBytes {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		files = append(files, File{
			AbsPath:  path,
			RelPath:  rel,
			Language: lang,
			Size:     size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
