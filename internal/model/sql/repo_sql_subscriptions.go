package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imagestudio/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureSubscription creates the default free subscription unless the user already has one.
func (r *GormRepository) EnsureSubscription(ctx context.Context, userID string, now time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("invalid user id")
	}
	row := entity.DbSubscription{
		UserID:    userID,
		Plan:      entity.PlanFree,
		Status:    entity.SubscriptionStatusActive,
		StartDate: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
}

// ListSubscriptionsByUser returns at most two rows so callers can detect duplicates.
func (r *GormRepository) ListSubscriptionsByUser(ctx context.Context, userID string) ([]entity.DbSubscription, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var rows []entity.DbSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Limit(2).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetSubscriptionByStripeID loads a subscription by its Stripe id.
func (r *GormRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*entity.DbSubscription, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(stripeSubscriptionID)
	if trimmed == "" {
		return nil, fmt.Errorf("stripe subscription id is empty")
	}
	var row entity.DbSubscription
	if err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", trimmed).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertSubscription writes the subscription state keyed by user in a single statement.
func (r *GormRepository) UpsertSubscription(ctx context.Context, upsert entity.SubscriptionUpsert, now time.Time) (*entity.DbSubscription, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(upsert.UserID) == "" {
		return nil, fmt.Errorf("invalid user id")
	}
	if strings.TrimSpace(upsert.StripeSubscriptionID) == "" {
		return nil, fmt.Errorf("stripe subscription id is empty")
	}

	customerID := strings.TrimSpace(upsert.StripeCustomerID)
	subscriptionID := strings.TrimSpace(upsert.StripeSubscriptionID)
	row := entity.DbSubscription{
		UserID:               upsert.UserID,
		Plan:                 upsert.Plan,
		Status:               upsert.Status,
		StripeSubscriptionID: &subscriptionID,
		StartDate:            now,
		CurrentPeriodEnd:     upsert.CurrentPeriodEnd,
	}
	if customerID != "" {
		row.StripeCustomerID = &customerID
	}
	// 只有取消状态带 end_date，重新订阅会清空旧的取消时间
	if upsert.Status == entity.SubscriptionStatusCanceled {
		row.EndDate = &now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan",
			"status",
			"stripe_customer_id",
			"stripe_subscription_id",
			"current_period_end",
			"end_date",
			"updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	var stored entity.DbSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", upsert.UserID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// CancelSubscription marks the subscription canceled and returns the number of rows changed.
func (r *GormRepository) CancelSubscription(ctx context.Context, stripeSubscriptionID string, endDate time.Time) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	trimmed := strings.TrimSpace(stripeSubscriptionID)
	if trimmed == "" {
		return 0, fmt.Errorf("stripe subscription id is empty")
	}
	result := r.db.WithContext(ctx).
		Model(&entity.DbSubscription{}).
		Where("stripe_subscription_id = ?", trimmed).
		Updates(map[string]interface{}{
			"status":   entity.SubscriptionStatusCanceled,
			"end_date": endDate,
		})
	return result.RowsAffected, result.Error
}

// HasWebhookEvent reports whether the event id was already applied.
func (r *GormRepository) HasWebhookEvent(ctx context.Context, id string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	var event entity.DbWebhookEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveWebhookEvent records an applied event. Saving twice is harmless.
func (r *GormRepository) SaveWebhookEvent(ctx context.Context, event *entity.DbWebhookEvent) error {
	if err := r.ready(); err != nil {
		return err
	}
	if event == nil || strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("webhook event id is empty")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(event).Error
}
