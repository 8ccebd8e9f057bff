package sql

import (
	"context"
	"fmt"
	"strings"

	"imagestudio/internal/entity"
)

// CreateProfile persists a new profile record.
func (r *GormRepository) CreateProfile(ctx context.Context, profile *entity.DbProfile) error {
	if err := r.ready(); err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("profile id is empty")
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetProfileByID loads a profile by ID.
func (r *GormRepository) GetProfileByID(ctx context.Context, id string) (*entity.DbProfile, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid profile id")
	}
	var profile entity.DbProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByEmail loads a profile by email.
func (r *GormRepository) GetProfileByEmail(ctx context.Context, email string) (*entity.DbProfile, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var profile entity.DbProfile
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(trimmed)).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByCustomerID loads the profile linked to a Stripe customer.
func (r *GormRepository) GetProfileByCustomerID(ctx context.Context, customerID string) (*entity.DbProfile, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, fmt.Errorf("customer id is empty")
	}
	var profile entity.DbProfile
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", trimmed).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates an existing profile.
func (r *GormRepository) UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid profile id")
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.DbProfile{}).Where("id = ?", id).Updates(updates).Error
}

// SetStripeCustomerID links a Stripe customer to the profile only if none is linked yet.
// It reports whether this call performed the link.
func (r *GormRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(customerID) == "" {
		return false, fmt.Errorf("user id and customer id are required")
	}
	result := r.db.WithContext(ctx).
		Model(&entity.DbProfile{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", userID).
		Update("stripe_customer_id", customerID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
