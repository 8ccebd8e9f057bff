package storage

import (
	"fmt"
	"strings"

	"imagestudio/internal/config"
)

// NewR2Storage 通过 S3 协议访问 Cloudflare R2。未配置 endpoint 时按账户 ID 推导。
func NewR2Storage(cfg config.Config) (Storage, error) {
	if err := requireSettings(TypeR2,
		setting{"STORAGE_R2_BUCKET", cfg.StorageR2Bucket},
		setting{"STORAGE_R2_ACCESS_KEY_ID", cfg.StorageR2AccessKeyID},
		setting{"STORAGE_R2_SECRET_ACCESS_KEY", cfg.StorageR2SecretAccessKey},
	); err != nil {
		return nil, err
	}

	endpoint, err := r2Endpoint(cfg.StorageR2Endpoint, cfg.StorageR2AccountID)
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.StorageR2Region)
	if region == "" {
		region = "auto"
	}

	client := newS3Client(s3Options{
		region:         region,
		endpoint:       endpoint,
		accessKeyID:    strings.TrimSpace(cfg.StorageR2AccessKeyID),
		secretKey:      strings.TrimSpace(cfg.StorageR2SecretAccessKey),
		forcePathStyle: true,
	})
	bucket := &s3Bucket{client: client, name: strings.TrimSpace(cfg.StorageR2Bucket)}
	return newBucketStorage(TypeR2, cfg.StorageR2Prefix, bucket), nil
}

func r2Endpoint(endpoint, accountID string) (string, error) {
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		return endpoint, nil
	}
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID), nil
	}
	return "", fmt.Errorf("storage: %s backend requires STORAGE_R2_ENDPOINT or STORAGE_R2_ACCOUNT_ID", TypeR2)
}
