package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/realtime"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Verifier 校验 Stripe-Signature 头。
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Verify 校验签名并解析事件，任何失败都返回 *WebhookError。
func (v *Verifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, webhookError("Missing signature or endpoint secret", nil)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return stripe.Event{}, webhookError("Missing signature or endpoint secret", nil)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, webhookError("invalid webhook signature", err)
	}
	return event, nil
}

// WebhookStore 是对账需要的存储能力。
type WebhookStore interface {
	GetProfileByCustomerID(ctx context.Context, customerID string) (*entity.DbProfile, error)
	UpsertSubscription(ctx context.Context, upsert entity.SubscriptionUpsert, now time.Time) (*entity.DbSubscription, error)
	CancelSubscription(ctx context.Context, stripeSubscriptionID string, endDate time.Time) (int64, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*entity.DbSubscription, error)
	HasWebhookEvent(ctx context.Context, id string) (bool, error)
	SaveWebhookEvent(ctx context.Context, event *entity.DbWebhookEvent) error
}

// Reconciler 把订阅事件同步到本地 subscription 表。
type Reconciler struct {
	store    WebhookStore
	gateway  Gateway
	notifier realtime.Notifier
	now      func() time.Time
}

func NewReconciler(store WebhookStore, gateway Gateway, notifier realtime.Notifier) *Reconciler {
	if notifier == nil {
		notifier = realtime.Nop{}
	}
	return &Reconciler{store: store, gateway: gateway, notifier: notifier, now: time.Now}
}

// Handle 处理一个已验签的事件。重复投递的事件直接确认。
func (r *Reconciler) Handle(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	logger := logrus.WithFields(logrus.Fields{"event_id": event.ID, "event_type": eventType})

	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
	default:
		logger.Debug("stripe_webhook_ignored")
		return nil
	}

	if event.ID != "" {
		seen, err := r.store.HasWebhookEvent(ctx, event.ID)
		if err != nil {
			return webhookError("load webhook event", err)
		}
		if seen {
			logger.Info("stripe_webhook_duplicate")
			return nil
		}
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return webhookError("event has no data object", nil)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return webhookError("decode subscription", err)
	}
	if sub.ID == "" {
		return webhookError("subscription id missing", nil)
	}

	var err error
	if eventType == EventSubscriptionDeleted {
		err = r.cancel(ctx, logger, &sub)
	} else {
		err = r.upsert(ctx, logger, &sub)
	}
	if err != nil {
		return err
	}

	if event.ID != "" {
		record := &entity.DbWebhookEvent{ID: event.ID, Type: eventType, ProcessedAt: r.now()}
		if err := r.store.SaveWebhookEvent(ctx, record); err != nil {
			// 变更已生效且可重放，记录失败只告警
			logger.WithError(err).Warn("stripe_webhook_mark_failed")
		}
	}
	return nil
}

func (r *Reconciler) upsert(ctx context.Context, logger *logrus.Entry, sub *stripe.Subscription) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	userID, err := r.resolveUserID(ctx, sub, customerID)
	if err != nil {
		return err
	}

	upsert := entity.SubscriptionUpsert{
		UserID:               userID,
		Plan:                 planFromSubscription(sub),
		Status:               string(sub.Status),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		upsert.CurrentPeriodEnd = &periodEnd
	}

	saved, err := r.store.UpsertSubscription(ctx, upsert, r.now())
	if err != nil {
		return webhookError("save subscription", err)
	}

	logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"plan":            saved.Plan,
		"status":          saved.Status,
		"subscription_id": sub.ID,
	}).Info("stripe_subscription_synced")
	r.notifier.Publish(ctx, realtime.Event{UserID: userID, Topic: realtime.TopicSubscription, Payload: saved})
	return nil
}

func (r *Reconciler) cancel(ctx context.Context, logger *logrus.Entry, sub *stripe.Subscription) error {
	affected, err := r.store.CancelSubscription(ctx, sub.ID, r.now())
	if err != nil {
		return webhookError("cancel subscription", err)
	}
	if affected == 0 {
		logger.WithField("subscription_id", sub.ID).Warn("stripe_subscription_unknown")
		return nil
	}

	logger.WithField("subscription_id", sub.ID).Info("stripe_subscription_canceled")
	if saved, err := r.store.GetSubscriptionByStripeID(ctx, sub.ID); err == nil && saved != nil {
		r.notifier.Publish(ctx, realtime.Event{UserID: saved.UserID, Topic: realtime.TopicSubscription, Payload: saved})
	}
	return nil
}

// resolveUserID 依次查订阅元数据、本地 profile、customer 元数据。
func (r *Reconciler) resolveUserID(ctx context.Context, sub *stripe.Subscription, customerID string) (string, error) {
	if userID := strings.TrimSpace(sub.Metadata[metadataUserID]); userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", webhookError("subscription has no customer", nil)
	}

	profile, err := r.store.GetProfileByCustomerID(ctx, customerID)
	switch {
	case err == nil && profile != nil:
		return profile.ID, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return "", webhookError("load profile", err)
	}

	if r.gateway == nil {
		return "", webhookError(fmt.Sprintf("no user for customer %s", customerID), nil)
	}
	customer, err := r.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return "", webhookError("retrieve customer", err)
	}
	if userID := strings.TrimSpace(customer.Metadata[metadataUserID]); userID != "" {
		return userID, nil
	}
	return "", webhookError(fmt.Sprintf("no user for customer %s", customerID), nil)
}

func planFromSubscription(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return entity.PlanUnknown
	}
	item := sub.Items.Data[0]
	if item == nil || item.Price == nil || strings.TrimSpace(item.Price.LookupKey) == "" {
		return entity.PlanUnknown
	}
	return item.Price.LookupKey
}
