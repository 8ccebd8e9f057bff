package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/utils"

	goredis "github.com/redis/go-redis/v9"
)

// ErrCorruptUsage 表示同一用户存在多行计数或订阅，重试无法修复。
var ErrCorruptUsage = errors.New("multiple usage rows for user")

// QuotaChecker 判断用户是否还能执行一次 kind 类操作。
type QuotaChecker interface {
	Allow(ctx context.Context, userID string, kind entity.UsageKind) (bool, error)
}

// QuotaStore 是 PlanQuota 需要的存储能力。
type QuotaStore interface {
	EnsureUsageStats(ctx context.Context, userID string, now time.Time) error
	ResetUsageIfStale(ctx context.Context, userID string, periodStart, now time.Time) error
	ListUsageStatsByUser(ctx context.Context, userID string) ([]entity.DbUsageStats, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]entity.DbSubscription, error)
}

// PlanQuota 按订阅计划的月度额度放行，自然月切换时先清零计数。
type PlanQuota struct {
	store QuotaStore
	now   func() time.Time
}

func NewPlanQuota(store QuotaStore) *PlanQuota {
	return &PlanQuota{store: store, now: time.Now}
}

func (q *PlanQuota) Allow(ctx context.Context, userID string, kind entity.UsageKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown usage kind %q", kind)
	}
	now := q.now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if err := q.store.EnsureUsageStats(ctx, userID, now); err != nil {
		return false, fmt.Errorf("ensure usage stats: %w", err)
	}
	if err := q.store.ResetUsageIfStale(ctx, userID, periodStart, now); err != nil {
		return false, fmt.Errorf("reset usage: %w", err)
	}

	stats, err := q.store.ListUsageStatsByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load usage stats: %w", err)
	}
	if len(stats) > 1 {
		return false, utils.Permanent(ErrCorruptUsage)
	}

	subs, err := q.store.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}
	if len(subs) > 1 {
		return false, utils.Permanent(ErrCorruptUsage)
	}

	var sub *entity.DbSubscription
	if len(subs) == 1 {
		sub = &subs[0]
	}
	limit := entity.LimitsForPlan(sub.EffectivePlan()).Limit(kind)
	if limit < 0 {
		return true, nil
	}

	var used int64
	if len(stats) == 1 {
		used = stats[0].Count(kind)
	}
	return used < limit, nil
}

// RedisWindow 每分钟固定窗口限流，limit<=0 时不限制。
type RedisWindow struct {
	rdb    *goredis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisWindow(rdb *goredis.Client, limitPerMinute int) *RedisWindow {
	return &RedisWindow{
		rdb:    rdb,
		limit:  int64(limitPerMinute),
		window: time.Minute,
		prefix: "imagestudio:rate",
		now:    time.Now,
	}
}

func (w *RedisWindow) key(userID string, kind entity.UsageKind) string {
	bucket := w.now().UTC().Truncate(w.window).Unix()
	return fmt.Sprintf("%s:%s:%s:%d", w.prefix, kind, userID, bucket)
}

func (w *RedisWindow) Allow(ctx context.Context, userID string, kind entity.UsageKind) (bool, error) {
	if w == nil || w.limit <= 0 {
		return true, nil
	}
	if w.rdb == nil {
		return false, errors.New("redis client not initialised")
	}

	key := w.key(userID, kind)
	var incr *goredis.IntCmd
	_, err := w.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*w.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate window: %w", err)
	}
	return incr.Val() <= w.limit, nil
}

// AllOf 只有全部 checker 放行才放行，按顺序短路。
func AllOf(checkers ...QuotaChecker) QuotaChecker {
	return allOf(checkers)
}

type allOf []QuotaChecker

func (a allOf) Allow(ctx context.Context, userID string, kind entity.UsageKind) (bool, error) {
	for _, checker := range a {
		if checker == nil {
			continue
		}
		ok, err := checker.Allow(ctx, userID, kind)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
