package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Config selects and configures the upload copier.
type Config struct {
	// Backend is one of "", "none", "fs", "minio", "s3", "azure", "oss", "cos".
	Backend string `mapstructure:"backend"`
	// Root is the uploads directory for "fs" and the key prefix of the
	// uploads root for bucket backends.
	Root    string      `mapstructure:"root"`
	Workers int         `mapstructure:"workers"`
	MinIO   MinIOConfig `mapstructure:"minio"`
	S3      S3Config    `mapstructure:"s3"`
	Azure   AzureConfig `mapstructure:"azure"`
	OSS     OSSConfig   `mapstructure:"oss"`
	COS     COSConfig   `mapstructure:"cos"`
}

// New builds the configured copier. It returns nil, nil when uploads are not
// copied.
func New(ctx context.Context, cfg Config, layout Layout, logger *zap.Logger) (Copier, error) {
	var (
		store ObjectStore
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "fs":
		if cfg.Root == "" {
			return nil, fmt.Errorf("assets.root is required for the fs backend")
		}
		return NewFSCopier(afero.NewOsFs(), cfg.Root, layout, logger), nil
	case "minio":
		store, err = NewMinIOStore(cfg.MinIO)
	case "s3":
		store, err = NewS3Store(ctx, cfg.S3)
	case "azure":
		store, err = NewAzureStore(cfg.Azure)
	case "oss":
		store, err = NewOSSStore(cfg.OSS)
	case "cos":
		store, err = NewCOSStore(cfg.COS)
	default:
		return nil, fmt.Errorf("unknown assets backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Backend, err)
	}
	root := cfg.Root
	if root == "" {
		root = layout.uploadsPath()
	}
	return NewBucketCopier(store, root, layout, cfg.Workers, logger), nil
}
