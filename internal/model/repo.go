package model

import (
	"context"
	"time"

	"imagestudio/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户资料
	CreateProfile(ctx context.Context, profile *entity.DbProfile) error
	GetProfileByID(ctx context.Context, id string) (*entity.DbProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*entity.DbProfile, error)
	GetProfileByCustomerID(ctx context.Context, customerID string) (*entity.DbProfile, error)
	UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) (bool, error)

	// 订阅
	EnsureSubscription(ctx context.Context, userID string, now time.Time) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]entity.DbSubscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*entity.DbSubscription, error)
	UpsertSubscription(ctx context.Context, upsert entity.SubscriptionUpsert, now time.Time) (*entity.DbSubscription, error)
	CancelSubscription(ctx context.Context, stripeSubscriptionID string, endDate time.Time) (int64, error)

	// Webhook 事件去重
	HasWebhookEvent(ctx context.Context, id string) (bool, error)
	SaveWebhookEvent(ctx context.Context, event *entity.DbWebhookEvent) error

	// 使用统计
	EnsureUsageStats(ctx context.Context, userID string, now time.Time) error
	ListUsageStatsByUser(ctx context.Context, userID string) ([]entity.DbUsageStats, error)
	IncrementUsage(ctx context.Context, userID string, kind entity.UsageKind, now time.Time) error
	ResetUsageIfStale(ctx context.Context, userID string, periodStart, now time.Time) error
	CreateApiRequest(ctx context.Context, request *entity.DbApiRequest) error

	// 图片
	CreateImage(ctx context.Context, image *entity.DbImage) error
	GetImage(ctx context.Context, userID, id string) (*entity.DbImage, error)
	FindImageByURL(ctx context.Context, userID, url string) (*entity.DbImage, error)
	ListImages(ctx context.Context, params *entity.ImageQuery) ([]entity.DbImage, *entity.Meta, error)
}
