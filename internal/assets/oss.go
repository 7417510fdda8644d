package assets

import (
	"context"
	"fmt"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig holds Alibaba Cloud OSS settings.
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	SecurityToken   string `mapstructure:"security_token"`
	Bucket          string `mapstructure:"bucket"`
}

// OSSStore is an ObjectStore on one OSS bucket.
type OSSStore struct {
	bucket *oss.Bucket
}

func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return nil, fmt.Errorf("access key ID and secret are required")
	}

	var opts []oss.ClientOption
	if cfg.SecurityToken != "" {
		opts = append(opts, oss.SecurityToken(cfg.SecurityToken))
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}
	return &OSSStore{bucket: bucket}, nil
}

func (s *OSSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	token := ""
	for {
		opts := []oss.Option{oss.Prefix(prefix), oss.MaxKeys(1000), oss.WithContext(ctx)}
		if token != "" {
			opts = append(opts, oss.ContinuationToken(token))
		}
		res, err := s.bucket.ListObjectsV2(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range res.Objects {
			keys = append(keys, obj.Key)
		}
		if !res.IsTruncated {
			return keys, nil
		}
		token = res.NextContinuationToken
	}
}

func (s *OSSStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if _, err := s.bucket.CopyObject(srcKey, dstKey, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}
