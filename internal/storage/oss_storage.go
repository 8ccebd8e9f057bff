package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"imagestudio/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossBucket struct {
	bucket *oss.Bucket
}

func (b *ossBucket) exists(_ context.Context, key string) (bool, error) {
	return b.bucket.IsObjectExist(key)
}

func (b *ossBucket) put(ctx context.Context, key string, data []byte, contentType string) error {
	return b.bucket.PutObject(key, bytes.NewReader(data), oss.WithContext(ctx), oss.ContentType(contentType))
}

// NewOSSStorage 连接阿里云 OSS。
func NewOSSStorage(cfg config.Config) (Storage, error) {
	if err := requireSettings(TypeOSS,
		setting{"STORAGE_OSS_ENDPOINT", cfg.StorageOSSEndpoint},
		setting{"STORAGE_OSS_BUCKET", cfg.StorageOSSBucket},
		setting{"STORAGE_OSS_ACCESS_KEY_ID", cfg.StorageOSSAccessKeyID},
		setting{"STORAGE_OSS_ACCESS_KEY_SECRET", cfg.StorageOSSAccessKeySecret},
	); err != nil {
		return nil, err
	}

	client, err := oss.New(
		strings.TrimSpace(cfg.StorageOSSEndpoint),
		strings.TrimSpace(cfg.StorageOSSAccessKeyID),
		strings.TrimSpace(cfg.StorageOSSAccessKeySecret),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create OSS client: %w", err)
	}
	bucket, err := client.Bucket(strings.TrimSpace(cfg.StorageOSSBucket))
	if err != nil {
		return nil, fmt.Errorf("storage: open OSS bucket: %w", err)
	}
	return newBucketStorage(TypeOSS, cfg.StorageOSSPrefix, &ossBucket{bucket: bucket}), nil
}
