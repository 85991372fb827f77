package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExt is the extension of Robot Framework suites.
const DefaultExt = ".robot"

// Roots walks every root in turn. A root which is a regular file is yielded
// as is when it matches ext. See FS for details.
func Roots(ctx context.Context, ext string, roots ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, name := range roots {
			info, err := os.Stat(name)
			if err != nil {
				if !yield(name, fmt.Errorf("walk root: %w", err)) {
					return
				}
				continue
			}
			if !info.IsDir() {
				if info.Mode().IsRegular() && matches(name, ext) && !yield(filepath.Clean(name), nil) {
					return
				}
				continue
			}

			root, err := os.OpenRoot(name)
			if err != nil {
				if !yield(name, fmt.Errorf("open root: %w", err)) {
					return
				}
				continue
			}
			for path, err := range FS(ctx, root.FS(), name, ext) {
				if !yield(path, err) {
					_ = root.Close()
					return
				}
			}
			_ = root.Close()
		}
	}
}

// FS recursively walks the filesystem and yields every regular file with
// extension ext (case insensitive). Each path is prefixed with name. It does
// not follow symlinks.
func FS(ctx context.Context, root fs.FS, name, ext string) iter.Seq2[string, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(string, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			joined := filepath.Join(name, filepath.FromSlash(path))
			if err != nil {
				if !yield(joined, err) {
					return fs.SkipAll
				}
				return nil
			}
			if !d.Type().IsRegular() || !matches(path, ext) {
				return nil
			}
			if !yield(joined, nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

// Collect drains seq into a sorted slice without duplicates. Walk errors are
// joined, the paths found so far are returned with them.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var paths []string
	var errs []error
	for path, err := range seq {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return slices.Compact(paths), errors.Join(errs...)
}

func matches(path, ext string) bool {
	if ext == "" {
		ext = DefaultExt
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}
