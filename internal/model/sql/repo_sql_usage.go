package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagestudio/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureUsageStats creates zeroed counters unless the user already has a row.
func (r *GormRepository) EnsureUsageStats(ctx context.Context, userID string, now time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("invalid user id")
	}
	row := entity.DbUsageStats{UserID: userID, LastResetDate: now, UpdatedAt: now}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
}

// ListUsageStatsByUser returns at most two rows so callers can detect duplicates.
func (r *GormRepository) ListUsageStatsByUser(ctx context.Context, userID string) ([]entity.DbUsageStats, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var rows []entity.DbUsageStats
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Limit(2).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementUsage bumps one counter with an atomic upsert.
func (r *GormRepository) IncrementUsage(ctx context.Context, userID string, kind entity.UsageKind, now time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("invalid user id")
	}

	row := entity.DbUsageStats{UserID: userID, LastResetDate: now, UpdatedAt: now}
	var column string
	switch kind {
	case entity.UsageGenerate:
		column = "generated_images"
		row.GeneratedImages = 1
	case entity.UsageEdit:
		column = "edited_images"
		row.EditedImages = 1
	default:
		return fmt.Errorf("unknown usage kind %q", kind)
	}

	table := entity.DbUsageStats{}.TableName()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr(table + "." + column + " + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
}

// ResetUsageIfStale zeroes the counters when they were last reset before periodStart.
func (r *GormRepository) ResetUsageIfStale(ctx context.Context, userID string, periodStart, now time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&entity.DbUsageStats{}).
		Where("user_id = ? AND last_reset_date < ?", userID, periodStart).
		Updates(map[string]interface{}{
			"generated_images": 0,
			"edited_images":    0,
			"last_reset_date":  now,
			"updated_at":       now,
		}).Error
}

// CreateApiRequest appends a request log row.
func (r *GormRepository) CreateApiRequest(ctx context.Context, request *entity.DbApiRequest) error {
	if err := r.ready(); err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("request is nil")
	}
	return r.db.WithContext(ctx).Create(request).Error
}
