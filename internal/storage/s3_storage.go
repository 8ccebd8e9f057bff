package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"imagestudio/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3Bucket 同时服务 Amazon S3 和 R2 等 S3 兼容服务。
type s3Bucket struct {
	client *s3.Client
	name   string
}

func (b *s3Bucket) exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, err
}

func (b *s3Bucket) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	return err
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "notfound", "nosuchkey", "404":
			return true
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// NewS3Storage 使用静态凭证连接 S3，配置了 endpoint 时可指向 MinIO 等兼容服务。
func NewS3Storage(cfg config.Config) (Storage, error) {
	if err := requireSettings(TypeS3,
		setting{"STORAGE_S3_BUCKET", cfg.StorageS3Bucket},
		setting{"STORAGE_S3_REGION", cfg.StorageS3Region},
		setting{"STORAGE_S3_ACCESS_KEY_ID", cfg.StorageS3AccessKeyID},
		setting{"STORAGE_S3_SECRET_ACCESS_KEY", cfg.StorageS3SecretAccessKey},
	); err != nil {
		return nil, err
	}

	client := newS3Client(s3Options{
		region:         strings.TrimSpace(cfg.StorageS3Region),
		endpoint:       strings.TrimSpace(cfg.StorageS3Endpoint),
		accessKeyID:    strings.TrimSpace(cfg.StorageS3AccessKeyID),
		secretKey:      strings.TrimSpace(cfg.StorageS3SecretAccessKey),
		sessionToken:   strings.TrimSpace(cfg.StorageS3SessionToken),
		forcePathStyle: cfg.StorageS3ForcePathStyle,
	})
	bucket := &s3Bucket{client: client, name: strings.TrimSpace(cfg.StorageS3Bucket)}
	return newBucketStorage(TypeS3, cfg.StorageS3Prefix, bucket), nil
}

type s3Options struct {
	region         string
	endpoint       string
	accessKeyID    string
	secretKey      string
	sessionToken   string
	forcePathStyle bool
}

func newS3Client(opts s3Options) *s3.Client {
	options := s3.Options{
		Region: opts.region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.accessKeyID, opts.secretKey, opts.sessionToken),
		),
		UsePathStyle: opts.forcePathStyle,
	}
	if opts.endpoint != "" {
		endpoint := opts.endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		options.BaseEndpoint = aws.String(endpoint)
	}
	return s3.New(options)
}
