package usage

import (
	"context"
	"strings"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/realtime"
	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
)

// RequestStore 记录请求日志并累加用量。
type RequestStore interface {
	CreateApiRequest(ctx context.Context, request *entity.DbApiRequest) error
	IncrementUsage(ctx context.Context, userID string, kind entity.UsageKind, now time.Time) error
}

// RequestLog 是一次生成/编辑调用的结果摘要。
type RequestLog struct {
	UserID    string
	Endpoint  string
	StartedAt time.Time
	Status    int
	UserAgent string
	IPAddress string
}

// Tracker 负责额度检查、请求日志和用量累加。
type Tracker struct {
	checker  QuotaChecker
	store    RequestStore
	notifier realtime.Notifier
	retry    utils.RetryPolicy
	now      func() time.Time
}

func NewTracker(checker QuotaChecker, store RequestStore, notifier realtime.Notifier) *Tracker {
	if notifier == nil {
		notifier = realtime.Nop{}
	}
	return &Tracker{
		checker:  checker,
		store:    store,
		notifier: notifier,
		retry:    utils.DefaultRetryPolicy(),
		now:      time.Now,
	}
}

// WithRetryPolicy 替换默认的重试策略。
func (t *Tracker) WithRetryPolicy(policy utils.RetryPolicy) *Tracker {
	t.retry = policy
	return t
}

// CheckQuota 失败即拒绝：重试耗尽后任何错误都视为不允许。
func (t *Tracker) CheckQuota(ctx context.Context, userID string, kind entity.UsageKind) bool {
	logger := logrus.WithFields(logrus.Fields{"user_id": userID, "kind": kind})
	if t.checker == nil || strings.TrimSpace(userID) == "" {
		logger.Warn("quota_check_unavailable")
		return false
	}

	allowed, err := utils.Retry(ctx, t.retry, func(ctx context.Context) (bool, error) {
		return t.checker.Allow(ctx, userID, kind)
	}, func(err error, wait time.Duration) {
		logger.WithError(err).WithField("retry_in", wait.String()).Warn("quota_check_retry")
	})
	if err != nil {
		logger.WithError(err).Error("quota_check_failed")
		return false
	}
	if !allowed {
		logger.Info("quota_check_denied")
	}
	return allowed
}

// RecordRequest 写入一条请求日志，错误只记录不返回。
func (t *Tracker) RecordRequest(ctx context.Context, entry RequestLog) {
	if t.store == nil {
		return
	}
	elapsed := t.now().Sub(entry.StartedAt).Milliseconds()
	if entry.StartedAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	row := &entity.DbApiRequest{
		UserID:         entry.UserID,
		Endpoint:       entry.Endpoint,
		Status:         entry.Status,
		ResponseTimeMs: elapsed,
		UserAgent:      truncate(entry.UserAgent, 512),
		IPAddress:      truncate(entry.IPAddress, 64),
	}
	// 客户端断开不应丢失日志
	if err := t.store.CreateApiRequest(context.WithoutCancel(ctx), row); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":  entry.UserID,
			"endpoint": entry.Endpoint,
			"status":   entry.Status,
		}).Warn("api_request_record_failed")
	}
}

// IncrementUsage 原子累加计数，成功后推送 usage 事件；错误只记录不返回。
func (t *Tracker) IncrementUsage(ctx context.Context, userID string, kind entity.UsageKind) {
	if t.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := t.store.IncrementUsage(ctx, userID, kind, t.now()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    kind,
		}).Warn("usage_increment_failed")
		return
	}
	t.notifier.Publish(ctx, realtime.Event{
		UserID:  userID,
		Topic:   realtime.TopicUsage,
		Payload: map[string]string{"kind": string(kind)},
	})
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
