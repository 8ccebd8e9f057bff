package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"imagestudio/internal/llm"
	"imagestudio/internal/storage"
	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	CategoryGeneratedImages = "generated_images"
	CategoryAvatars         = "avatars"
)

// MediaPersister 把 provider 返回的图片落到对象存储，返回可公开访问的 URL。
type MediaPersister struct {
	store      storage.Storage
	publicBase string
}

func NewMediaPersister(store storage.Storage, publicBase string) *MediaPersister {
	return &MediaPersister{store: store, publicBase: publicBase}
}

// Persist 远程 URL 原样返回；内联数据按用户目录上传。
func (p *MediaPersister) Persist(ctx context.Context, userID string, payload *llm.ImagePayload) (string, error) {
	if payload == nil {
		return "", &StorageError{Op: "persist", Err: errors.New("empty image payload")}
	}
	if payload.IsRemote() {
		return strings.TrimSpace(payload.URL), nil
	}
	return p.Save(ctx, userID, CategoryGeneratedImages, payload.Data, payload.MimeType)
}

// Save 上传原始字节到 category/userID 下，文件名为毫秒时间戳。
func (p *MediaPersister) Save(ctx context.Context, userID, category string, data []byte, mimeType string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", &StorageError{Op: "persist", Err: errors.New("user id is required")}
	}
	if len(data) == 0 {
		return "", &StorageError{Op: "persist", Err: errors.New("empty image data")}
	}
	if p.store == nil {
		return "", &StorageError{Op: "persist", Err: errors.New("storage is not configured")}
	}

	ext := utils.ExtensionFromMime(mimeType)
	if ext == "" {
		ext = "png"
	}

	started := time.Now()
	key, err := p.store.Save(ctx, data, storage.SaveOptions{
		Category:  category,
		Owner:     userID,
		Extension: ext,
	})
	if err != nil {
		return "", &StorageError{Op: "upload", Err: err}
	}

	url := storage.PublicURL(p.publicBase, key)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"category":    category,
		"key":         key,
		"size_bytes":  len(data),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("media_persisted")
	return url, nil
}
