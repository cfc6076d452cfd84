package filecrc

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// A Walker finds the files below a directory that should be checksummed.
type Walker struct {
	Include *GlobSet // every glob must match a file
	Exclude *GlobSet // matching files and directories are skipped
	Follow  bool     // follow symbolic links
	Log     *zap.Logger
}

func ignoreError(err error) bool {
	return err == nil || os.IsPermission(err) || os.IsNotExist(err)
}

func (w *Walker) logger() *zap.Logger {
	if w.Log != nil {
		return w.Log
	}
	return zap.NewNop()
}

// rootName returns the name matched by globs for the walk root: its base
// name, or "" if root is a volume or the filesystem root.
func rootName(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	base := filepath.Base(abs)
	if os.IsPathSeparator(base[len(base)-1]) {
		return "", nil
	}
	return base, nil
}

// Walk calls fn for every regular file below root. Like fastwalk.Walk, fn
// is called concurrently and must be safe for concurrent use. Permission
// and not exist errors are logged and skipped, all other errors stop the
// walk. Walk stops when ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, root string, fn func(path string) error) error {
	log := w.logger()
	base, err := rootName(root)
	if err != nil {
		return err
	}
	globName := func(name string) string {
		rel, err := filepath.Rel(root, name)
		if err != nil {
			return filepath.ToSlash(name)
		}
		return path.Join(base, filepath.ToSlash(rel))
	}
	cleanRoot := filepath.Clean(root)
	done := ctx.Done()
	conf := fastwalk.Config{Follow: w.Follow}
	return fastwalk.Walk(&conf, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("walking", zap.String("path", name), zap.Error(err))
			if !ignoreError(err) {
				return err
			}
			return nil
		}
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		typ := d.Type()
		if typ&fs.ModeSymlink != 0 {
			fi, err := os.Stat(name)
			if err != nil {
				log.Warn("walking", zap.String("path", name), zap.Error(err))
				if !ignoreError(err) {
					return err
				}
				return nil
			}
			typ = fi.Mode().Type()
		}
		switch {
		case typ.IsDir():
			if filepath.Clean(name) != cleanRoot && w.Exclude.Exclude(globName(name)) {
				log.Debug("skipping directory", zap.String("path", name))
				return filepath.SkipDir
			}
		case typ.IsRegular():
			if g := globName(name); w.Exclude.Exclude(g) || !w.Include.Match(g) {
				log.Debug("skipping file", zap.String("path", name))
				return nil
			}
			return fn(name)
		}
		return nil
	})
}
