package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"imagestudio/internal/config"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosBucket struct {
	client *cos.Client
}

func (b *cosBucket) exists(ctx context.Context, key string) (bool, error) {
	resp, err := b.client.Object.Head(ctx, key, nil)
	closeCOSResponse(resp)
	if err == nil {
		return true, nil
	}
	if cos.IsNotFoundError(err) {
		return false, nil
	}
	return false, err
}

func (b *cosBucket) put(ctx context.Context, key string, data []byte, contentType string) error {
	resp, err := b.client.Object.Put(ctx, key, bytes.NewReader(data), &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	})
	closeCOSResponse(resp)
	return err
}

func closeCOSResponse(resp *cos.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// NewCOSStorage 连接腾讯云 COS，存储桶由完整的 bucket URL 指定。
func NewCOSStorage(cfg config.Config) (Storage, error) {
	if err := requireSettings(TypeCOS,
		setting{"STORAGE_COS_BUCKET_URL", cfg.StorageCOSBucketURL},
		setting{"STORAGE_COS_SECRET_ID", cfg.StorageCOSSecretID},
		setting{"STORAGE_COS_SECRET_KEY", cfg.StorageCOSSecretKey},
	); err != nil {
		return nil, err
	}

	bucketURL, err := url.Parse(strings.TrimSpace(cfg.StorageCOSBucketURL))
	if err != nil {
		return nil, fmt.Errorf("storage: parse COS bucket URL: %w", err)
	}
	httpClient := &http.Client{Transport: &cos.AuthorizationTransport{
		SecretID:  strings.TrimSpace(cfg.StorageCOSSecretID),
		SecretKey: strings.TrimSpace(cfg.StorageCOSSecretKey),
	}}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, httpClient)
	return newBucketStorage(TypeCOS, cfg.StorageCOSPrefix, &cosBucket{client: client}), nil
}
