package assets

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"site-cloner/internal/model"
)

// ObjectStore is the slice of an object storage API the bucket copier uses.
type ObjectStore interface {
	// List returns every key starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Copy copies one object server side within the bucket.
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// BucketCopier copies upload trees kept in an object storage bucket.
type BucketCopier struct {
	store   ObjectStore
	root    string
	layout  Layout
	workers int
	logger  *zap.Logger
}

// NewBucketCopier returns a copier over store. root is the key prefix of the
// uploads root, such as "wp-content/uploads".
func NewBucketCopier(store ObjectStore, root string, layout Layout, workers int, logger *zap.Logger) *BucketCopier {
	if workers <= 0 {
		workers = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BucketCopier{store: store, root: strings.Trim(root, "/"), layout: layout, workers: workers, logger: logger}
}

func (c *BucketCopier) prefix(siteID int64) string {
	p := path.Join(c.root, c.layout.Dir(siteID))
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

func (c *BucketCopier) CopyUploads(ctx context.Context, from, to model.Tenant) (int, error) {
	src, dst := c.prefix(from.SiteID), c.prefix(to.SiteID)
	if src == dst {
		return 0, fmt.Errorf("source and destination upload prefixes are the same: %q", src)
	}

	keys, err := c.store.List(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("list %q: %w", src, err)
	}

	skip := c.layout.sourceFilter(from)
	var pending []string
	for _, k := range keys {
		rel := strings.TrimPrefix(k, src)
		if rel == "" || strings.HasSuffix(rel, "/") || skip(rel) {
			continue
		}
		pending = append(pending, rel)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, rel := range pending {
		rel := rel
		g.Go(func() error {
			if err := c.store.Copy(gctx, src+rel, dst+rel); err != nil {
				return fmt.Errorf("copy %s: %w", src+rel, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	c.logger.Info("uploads copied", zap.String("from", src), zap.String("to", dst), zap.Int("objects", len(pending)))
	return len(pending), nil
}
