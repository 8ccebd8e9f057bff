package api

import (
	"context"
	"errors"
	"time"

	"imagestudio/internal/auth"
	"imagestudio/internal/billing"
	"imagestudio/internal/config"
	"imagestudio/internal/entity"
	"imagestudio/internal/realtime"
	"imagestudio/internal/service"

	"github.com/stripe/stripe-go/v76"
)

// ProfileStore 是认证接口需要的 profile 读写能力。
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *entity.DbProfile) error
	GetProfileByID(ctx context.Context, id string) (*entity.DbProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*entity.DbProfile, error)
}

// ImageStudio 生成、编辑和图库。
type ImageStudio interface {
	ProviderName() string
	Generate(ctx context.Context, in service.GenerateInput) (*entity.DbImage, error)
	Edit(ctx context.Context, in service.EditInput) (*entity.DbImage, error)
	Get(ctx context.Context, userID, id string) (*entity.DbImage, error)
	List(ctx context.Context, query *entity.ImageQuery) ([]entity.DbImage, *entity.Meta, error)
}

// AccountManager 账户数据读取和 profile 编辑。
type AccountManager interface {
	Load(ctx context.Context, userID string) (*entity.AccountData, error)
	UpdateProfile(ctx context.Context, userID string, req entity.ProfileUpdateRequest) (*entity.ProfileSummary, error)
	UploadAvatar(ctx context.Context, userID string, data []byte) (*entity.ProfileSummary, error)
}

// BillingService 创建 Stripe 结账和账单门户会话。
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, userID, priceID, origin string) (*billing.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error)
}

// WebhookHandler 处理已验签的 Stripe 事件。
type WebhookHandler interface {
	Handle(ctx context.Context, event stripe.Event) error
}

// Options 汇总 HTTP 层依赖的服务。Billing 和 Webhooks 为空时对应接口返回 503/400。
type Options struct {
	Studio   ImageStudio
	Account  AccountManager
	Billing  BillingService
	Verifier *billing.Verifier
	Webhooks WebhookHandler
	Hub      *realtime.Hub
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	profiles    ProfileStore
	authManager *auth.Manager

	// 服务层
	studio   ImageStudio
	account  AccountManager
	billing  BillingService
	verifier *billing.Verifier
	webhooks WebhookHandler

	// SSE 订阅
	hub          *realtime.Hub
	pingInterval time.Duration
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, profiles ProfileStore, opts Options) (*HTTPHandler, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if opts.Studio == nil || opts.Account == nil {
		return nil, errors.New("studio and account services are required")
	}

	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	hub := opts.Hub
	if hub == nil {
		hub = realtime.NewHub()
	}

	return &HTTPHandler{
		cfg:          cfg,
		profiles:     profiles,
		authManager:  authManager,
		studio:       opts.Studio,
		account:      opts.Account,
		billing:      opts.Billing,
		verifier:     opts.Verifier,
		webhooks:     opts.Webhooks,
		hub:          hub,
		pingInterval: 10 * time.Second,
	}, nil
}
