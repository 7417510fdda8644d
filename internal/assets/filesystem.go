package assets

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"site-cloner/internal/model"
)

// FSCopier copies upload trees on a filesystem rooted at the uploads
// directory.
type FSCopier struct {
	fs     afero.Fs
	root   string
	layout Layout
	logger *zap.Logger
}

// NewFSCopier returns a copier over fsys. root is the absolute uploads
// directory.
func NewFSCopier(fsys afero.Fs, root string, layout Layout, logger *zap.Logger) *FSCopier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSCopier{fs: fsys, root: root, layout: layout, logger: logger}
}

func (c *FSCopier) CopyUploads(ctx context.Context, from, to model.Tenant) (int, error) {
	src := filepath.Join(c.root, c.layout.Dir(from.SiteID))
	dst := filepath.Join(c.root, c.layout.Dir(to.SiteID))
	if src == dst {
		return 0, fmt.Errorf("source and destination upload directories are the same: %s", src)
	}

	if _, err := c.fs.Stat(src); err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("no uploads to copy", zap.String("dir", src))
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}

	skip := c.layout.sourceFilter(from)
	copied := 0
	err := afero.Walk(c.fs, src, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return c.fs.MkdirAll(dst, info.Mode().Perm()|0o700)
		}
		if skip(filepath.ToSlash(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return c.fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := c.copyFile(p, target, info.Mode().Perm()); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copy uploads %s -> %s: %w", src, dst, err)
	}

	c.logger.Info("uploads copied", zap.String("from", src), zap.String("to", dst), zap.Int("files", copied))
	return copied, nil
}

func (c *FSCopier) copyFile(src, dst string, perm fs.FileMode) error {
	in, err := c.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := c.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
