package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"imagestudio/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// CheckoutStore 是结账流程需要的存储能力。
type CheckoutStore interface {
	GetProfileByID(ctx context.Context, id string) (*entity.DbProfile, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) (bool, error)
}

// CheckoutSession 是返回给前端的结账会话。
type CheckoutSession struct {
	ID  string
	URL string
}

// Checkout 创建 Stripe 结账与账单门户会话。
type Checkout struct {
	store   CheckoutStore
	gateway Gateway
}

func NewCheckout(store CheckoutStore, gateway Gateway) *Checkout {
	return &Checkout{store: store, gateway: gateway}
}

// CreateCheckoutSession 为用户创建订阅模式的结账会话，必要时先创建 Stripe customer。
func (c *Checkout) CreateCheckoutSession(ctx context.Context, userID, priceID, origin string) (*CheckoutSession, error) {
	userID = strings.TrimSpace(userID)
	priceID = strings.TrimSpace(priceID)
	if userID == "" || priceID == "" {
		return nil, errors.New("missing user_id or price_id")
	}
	if c.gateway == nil {
		return nil, errors.New("payments are not configured")
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")

	customerID, err := c.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(origin + "/account?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(origin + "/account"),
	}
	params.AddMetadata(metadataUserID, userID)
	params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{metadataUserID: userID},
	}

	session, err := c.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"price_id":   priceID,
		"session_id": session.ID,
	}).Info("stripe_checkout_session_created")
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession 返回账单门户地址，用户必须已有 Stripe customer。
func (c *Checkout) CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error) {
	if c.gateway == nil {
		return "", errors.New("payments are not configured")
	}
	profile, err := c.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID := profile.CustomerID()
	if customerID == "" {
		return "", errors.New("no billing account for user")
	}

	params := &stripe.BillingPortalSessionParams{Customer: stripe.String(customerID)}
	if strings.TrimSpace(returnURL) != "" {
		params.ReturnURL = stripe.String(strings.TrimSpace(returnURL))
	}
	session, err := c.gateway.CreatePortalSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// ensureCustomer 保证 profile 只绑定一个 customer：并发创建时以先写入者为准。
func (c *Checkout) ensureCustomer(ctx context.Context, userID string) (string, error) {
	profile, err := c.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing := profile.CustomerID(); existing != "" {
		return existing, nil
	}

	customer, err := c.gateway.CreateCustomer(ctx, profile.Email, profile.DisplayName, userID)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}

	linked, err := c.store.SetStripeCustomerID(ctx, userID, customer.ID)
	if err != nil {
		return "", fmt.Errorf("link customer: %w", err)
	}
	if linked {
		logrus.WithFields(logrus.Fields{"user_id": userID, "customer_id": customer.ID}).Info("stripe_customer_linked")
		return customer.ID, nil
	}

	reloaded, err := c.loadProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	winner := reloaded.CustomerID()
	if winner == "" {
		return "", errors.New("link customer: profile was not updated")
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"customer_id": winner,
		"discarded":   customer.ID,
	}).Warn("stripe_customer_link_race")
	return winner, nil
}

func (c *Checkout) loadProfile(ctx context.Context, userID string) (*entity.DbProfile, error) {
	profile, err := c.store.GetProfileByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && profile == nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}
