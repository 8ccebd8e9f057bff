package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Gateway 封装对 Stripe 的出站调用。
type Gateway interface {
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, email, name, userID string) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// metadataUserID 是写在 Stripe customer/subscription 元数据里的用户 ID 键。
const metadataUserID = "user_id"

type stripeGateway struct {
	api *client.API
}

// NewStripeGateway 用 secret key 初始化 Stripe 客户端。
func NewStripeGateway(secretKey string) (Gateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeGateway{api: api}, nil
}

func (g *stripeGateway) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return g.api.Customers.Get(customerID, params)
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if strings.TrimSpace(name) != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)
	// 同一用户重复创建时由 Stripe 按幂等键返回同一个 customer
	params.SetIdempotencyKey("customer-create-" + userID)
	return g.api.Customers.New(params)
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return g.api.CheckoutSessions.New(params)
}

func (g *stripeGateway) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return g.api.BillingPortalSessions.New(params)
}
