package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// objectBucket 是云厂商 SDK 的最小适配层，键的生成、前缀和覆盖策略都在 BucketStorage 中统一处理。
type objectBucket interface {
	exists(ctx context.Context, key string) (bool, error)
	put(ctx context.Context, key string, data []byte, contentType string) error
}

// BucketStorage 把生成图和头像写入对象存储（S3、R2、OSS、COS），返回带前缀的对象键。
type BucketStorage struct {
	vendor string
	bucket objectBucket
	prefix string
	now    func() time.Time
}

func newBucketStorage(vendor, prefix string, bucket objectBucket) *BucketStorage {
	return &BucketStorage{
		vendor: vendor,
		bucket: bucket,
		prefix: trimPrefix(prefix),
		now:    time.Now,
	}
}

// Save uploads data under prefix/category/owner/YYYY/MM/DD/name.ext.
func (s *BucketStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := joinPrefix(s.prefix, buildObjectPath(opts, s.now()))

	if opts.SkipIfExists {
		found, err := s.bucket.exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("%s: check %s: %w", s.vendor, key, err)
		}
		if found {
			return key, nil
		}
	}

	if err := s.bucket.put(ctx, key, data, detectContentType(opts.Extension)); err != nil {
		return "", fmt.Errorf("%s: put %s: %w", s.vendor, key, err)
	}

	logrus.WithFields(logrus.Fields{
		"backend":    s.vendor,
		"key":        key,
		"size_bytes": len(data),
	}).Debug("storage_object_saved")
	return key, nil
}

var _ Storage = (*BucketStorage)(nil)

// setting 是一个必填配置项，name 为对应的环境变量。
type setting struct {
	name  string
	value string
}

// requireSettings 一次性列出所有缺失的配置项。
func requireSettings(vendor string, settings ...setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			missing = append(missing, s.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("storage: %s backend requires %s", vendor, strings.Join(missing, ", "))
}
