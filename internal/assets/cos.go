package assets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSConfig holds Tencent Cloud COS settings.
type COSConfig struct {
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	// Bucket is the full bucket name including the app id suffix.
	Bucket string `mapstructure:"bucket"`
	HTTPS  bool   `mapstructure:"https"`
}

// COSStore is an ObjectStore on one COS bucket.
type COSStore struct {
	client *cos.Client
	host   string
}

func NewCOSStore(cfg COSConfig) (*COSStore, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret ID and key are required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	bucketURL, err := cos.NewBucketURL(cfg.Bucket, cfg.Region, cfg.HTTPS)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket URL: %w", err)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Timeout: 30 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &COSStore{client: client, host: bucketURL.Host}, nil
}

func (s *COSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	marker := ""
	for {
		res, _, err := s.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix:  prefix,
			Marker:  marker,
			MaxKeys: 1000,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range res.Contents {
			keys = append(keys, obj.Key)
		}
		if !res.IsTruncated {
			return keys, nil
		}
		marker = res.NextMarker
	}
}

func (s *COSStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if _, _, err := s.client.Object.Copy(ctx, dstKey, s.host+"/"+srcKey, nil); err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}
