package entity

import "time"

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
	PlanUnknown    = "unknown"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusCanceled = "canceled"
)

// DbSubscription mirrors the payment processor's subscription state for a user.
// Rows are only status-transitioned, never deleted.
type DbSubscription struct {
	ID                   uint       `gorm:"primarykey" json:"id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	UserID               string     `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Plan                 string     `gorm:"column:plan;type:varchar(50);not null" json:"plan"`
	Status               string     `gorm:"column:status;type:varchar(50);not null" json:"status"`
	StripeCustomerID     *string    `gorm:"column:stripe_customer_id;type:varchar(255);index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `gorm:"column:stripe_subscription_id;type:varchar(255);uniqueIndex" json:"stripe_subscription_id,omitempty"`
	StartDate            time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate              *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"column:current_period_end" json:"current_period_end,omitempty"`
}

// TableName 指定表名。
func (DbSubscription) TableName() string {
	return "subscription"
}

// EffectivePlan returns the plan whose limits apply right now.
// Paid plans only count while the subscription is active or trialing.
func (s *DbSubscription) EffectivePlan() string {
	if s == nil {
		return PlanFree
	}
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		if s.Plan == "" || s.Plan == PlanUnknown {
			return PlanFree
		}
		return s.Plan
	default:
		return PlanFree
	}
}

// SubscriptionUpsert carries the fields a webhook event sets on a subscription.
type SubscriptionUpsert struct {
	UserID               string
	Plan                 string
	Status               string
	StripeCustomerID     string
	StripeSubscriptionID string
	CurrentPeriodEnd     *time.Time
}

// DbWebhookEvent records payment processor events that were already applied.
type DbWebhookEvent struct {
	ID          string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Type        string    `gorm:"column:type;type:varchar(100);not null" json:"type"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null" json:"processed_at"`
}

// TableName 指定表名。
func (DbWebhookEvent) TableName() string {
	return "webhook_event"
}

// CheckoutSessionRequest is the checkout handler payload.
type CheckoutSessionRequest struct {
	UserID  string `json:"user_id"`
	PriceID string `json:"price_id"`
}

// CheckoutSessionResponse is returned after a checkout session is created.
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url,omitempty"`
}

// PortalSessionRequest optionally overrides the return URL.
type PortalSessionRequest struct {
	ReturnURL string `json:"return_url"`
}

// PortalSessionResponse carries the billing portal URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}
