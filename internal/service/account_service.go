package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/prompt"
	"imagestudio/internal/realtime"
	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxAvatarBytes 头像上传大小上限。
const MaxAvatarBytes = 5 << 20

// AccountStore 账户页需要的读写能力。
type AccountStore interface {
	GetProfileByID(ctx context.Context, id string) (*entity.DbProfile, error)
	UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error
	EnsureUsageStats(ctx context.Context, userID string, now time.Time) error
	ListUsageStatsByUser(ctx context.Context, userID string) ([]entity.DbUsageStats, error)
	EnsureSubscription(ctx context.Context, userID string, now time.Time) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]entity.DbSubscription, error)
}

// AccountService 加载并维护用户资料、用量与订阅。
type AccountService struct {
	store     AccountStore
	persister *MediaPersister
	notifier  realtime.Notifier
	retry     utils.RetryPolicy
	now       func() time.Time
}

func NewAccountService(store AccountStore, persister *MediaPersister, notifier realtime.Notifier) *AccountService {
	if notifier == nil {
		notifier = realtime.Nop{}
	}
	return &AccountService{
		store:     store,
		persister: persister,
		notifier:  notifier,
		retry:     utils.DefaultRetryPolicy(),
		now:       time.Now,
	}
}

// WithRetryPolicy 替换默认的重试策略。
func (s *AccountService) WithRetryPolicy(policy utils.RetryPolicy) *AccountService {
	s.retry = policy
	return s
}

// Load 读取 profile、用量与订阅；后两者不存在时懒创建。每一步都走重试策略。
func (s *AccountService) Load(ctx context.Context, userID string) (*entity.AccountData, error) {
	logger := logrus.WithField("user_id", userID)
	onRetry := func(step string) func(error, time.Duration) {
		return func(err error, wait time.Duration) {
			logger.WithError(err).WithFields(logrus.Fields{"step": step, "retry_in": wait.String()}).Warn("account_load_retry")
		}
	}

	profile, err := utils.Retry(ctx, s.retry, func(ctx context.Context) (*entity.DbProfile, error) {
		profile, err := s.store.GetProfileByID(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Permanent(err)
		}
		return profile, err
	}, onRetry("profile"))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	stats, err := utils.Retry(ctx, s.retry, func(ctx context.Context) (*entity.DbUsageStats, error) {
		if err := s.store.EnsureUsageStats(ctx, userID, s.now()); err != nil {
			return nil, err
		}
		rows, err := s.store.ListUsageStatsByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return single(rows)
	}, onRetry("usage"))
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}

	sub, err := utils.Retry(ctx, s.retry, func(ctx context.Context) (*entity.DbSubscription, error) {
		if err := s.store.EnsureSubscription(ctx, userID, s.now()); err != nil {
			return nil, err
		}
		rows, err := s.store.ListSubscriptionsByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return single(rows)
	}, onRetry("subscription"))
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	return &entity.AccountData{
		Profile:      profile.Summary(),
		Usage:        stats,
		Subscription: sub,
		Limits:       entity.LimitsForPlan(sub.EffectivePlan()),
	}, nil
}

// single 要求恰好一行，多行视为数据损坏且不重试。
func single[T any](rows []T) (*T, error) {
	switch len(rows) {
	case 1:
		return &rows[0], nil
	case 0:
		return nil, errors.New("row missing after lazy creation")
	default:
		return nil, utils.Permanent(ErrCorruptUserData)
	}
}

// UpdateProfile 更新可编辑字段并推送 profile 事件。
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req entity.ProfileUpdateRequest) (*entity.ProfileSummary, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if len([]rune(name)) > 100 {
			return nil, &prompt.ValidationError{Field: "display_name", Message: "display name must be at most 100 characters"}
		}
		updates["display_name"] = name
	}
	if len(updates) > 0 {
		if err := s.store.UpdateProfile(ctx, userID, updates); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return s.reloadAndNotify(ctx, userID)
}

// UploadAvatar 校验并保存头像，成功后写回 avatar_url。
func (s *AccountService) UploadAvatar(ctx context.Context, userID string, data []byte) (*entity.ProfileSummary, error) {
	if len(data) == 0 {
		return nil, &prompt.ValidationError{Field: "avatar", Message: "please choose an image"}
	}
	if len(data) > MaxAvatarBytes {
		return nil, &prompt.ValidationError{Field: "avatar", Message: "image must be smaller than 5MB"}
	}
	mimeType := utils.NormalizeMimeType(http.DetectContentType(data))
	if !strings.HasPrefix(mimeType, "image/") || utils.ExtensionFromMime(mimeType) == "" {
		return nil, &prompt.ValidationError{Field: "avatar", Message: "please upload an image file"}
	}

	url, err := s.persister.Save(ctx, userID, CategoryAvatars, data, mimeType)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateProfile(ctx, userID, map[string]interface{}{"avatar_url": url}); err != nil {
		return nil, &StorageError{Op: "update avatar", Err: err}
	}
	return s.reloadAndNotify(ctx, userID)
}

func (s *AccountService) reloadAndNotify(ctx context.Context, userID string) (*entity.ProfileSummary, error) {
	profile, err := s.store.GetProfileByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	summary := profile.Summary()
	s.notifier.Publish(ctx, realtime.Event{UserID: userID, Topic: realtime.TopicProfile, Payload: summary})
	return &summary, nil
}
