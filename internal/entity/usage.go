package entity

import "time"

// UsageKind distinguishes generated from edited images.
type UsageKind string

const (
	UsageGenerate UsageKind = "generate"
	UsageEdit     UsageKind = "edit"
)

// Valid reports whether the kind is known.
func (k UsageKind) Valid() bool {
	return k == UsageGenerate || k == UsageEdit
}

// DbUsageStats holds monthly counters, one row per user.
type DbUsageStats struct {
	ID              uint      `gorm:"primarykey" json:"-"`
	UserID          string    `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	GeneratedImages int64     `gorm:"column:generated_images;not null;default:0" json:"generated_images"`
	EditedImages    int64     `gorm:"column:edited_images;not null;default:0" json:"edited_images"`
	LastResetDate   time.Time `gorm:"column:last_reset_date;not null" json:"last_reset_date"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定表名。
func (DbUsageStats) TableName() string {
	return "usage_stats"
}

// Count returns the counter for a kind.
func (u *DbUsageStats) Count(kind UsageKind) int64 {
	if u == nil {
		return 0
	}
	if kind == UsageEdit {
		return u.EditedImages
	}
	return u.GeneratedImages
}

// DbApiRequest is an append-only log of provider-backed requests.
type DbApiRequest struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UserID         string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	Endpoint       string    `gorm:"column:endpoint;type:varchar(100);not null" json:"endpoint"`
	Status         int       `gorm:"column:status;not null" json:"status"`
	ResponseTimeMs int64     `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	UserAgent      string    `gorm:"column:user_agent;type:varchar(512)" json:"user_agent"`
	IPAddress      string    `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`
}

// TableName 指定表名。
func (DbApiRequest) TableName() string {
	return "api_request"
}

// PlanLimits are the monthly allowances of a plan. Negative means unlimited.
type PlanLimits struct {
	GeneratedImages int64 `json:"generated_images"`
	EditedImages    int64 `json:"edited_images"`
}

// Limit returns the allowance for a kind.
func (l PlanLimits) Limit(kind UsageKind) int64 {
	if kind == UsageEdit {
		return l.EditedImages
	}
	return l.GeneratedImages
}

var planLimits = map[string]PlanLimits{
	PlanFree:       {GeneratedImages: 10, EditedImages: 5},
	PlanPro:        {GeneratedImages: 100, EditedImages: 50},
	PlanEnterprise: {GeneratedImages: -1, EditedImages: -1},
}

// LimitsForPlan falls back to the free plan for unknown plans.
func LimitsForPlan(plan string) PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[PlanFree]
}

// AccountData is everything the account and usage views need.
type AccountData struct {
	Profile      ProfileSummary  `json:"profile"`
	Usage        *DbUsageStats   `json:"usage"`
	Subscription *DbSubscription `json:"subscription"`
	Limits       PlanLimits      `json:"limits"`
}
