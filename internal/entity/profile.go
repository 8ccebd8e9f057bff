package entity

import "time"

// DbProfile represents a persisted user account and its public profile.
type DbProfile struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Email            string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash     string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName      string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	AvatarURL        string    `gorm:"column:avatar_url;type:varchar(1024)" json:"avatar_url"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;type:varchar(255);uniqueIndex" json:"-"`
}

// TableName 指定表名。
func (DbProfile) TableName() string {
	return "profile"
}

// CustomerID returns the Stripe customer id or an empty string.
func (p *DbProfile) CustomerID() string {
	if p == nil || p.StripeCustomerID == nil {
		return ""
	}
	return *p.StripeCustomerID
}

// Summary strips credentials and billing identifiers.
func (p *DbProfile) Summary() ProfileSummary {
	if p == nil {
		return ProfileSummary{}
	}
	return ProfileSummary{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProfileSummary is returned to clients.
type ProfileSummary struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthLoginRequest is the login request payload.
type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthRegisterRequest is the registration request payload.
type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// AuthResponse is returned after successful login/registration.
type AuthResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      ProfileSummary `json:"user"`
}

// ProfileUpdateRequest carries editable profile fields.
type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
}
