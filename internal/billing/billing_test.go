package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/realtime"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

const testSecret = "whsec_test_secret"

type fakeStore struct {
	profiles      map[string]*entity.DbProfile
	subs          map[string]*entity.DbSubscription
	events        map[string]entity.DbWebhookEvent
	upserts       int
	linkConflicts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[string]*entity.DbProfile{},
		subs:     map[string]*entity.DbSubscription{},
		events:   map[string]entity.DbWebhookEvent{},
	}
}

func (f *fakeStore) GetProfileByID(_ context.Context, id string) (*entity.DbProfile, error) {
	if p, ok := f.profiles[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) GetProfileByCustomerID(_ context.Context, customerID string) (*entity.DbProfile, error) {
	for _, p := range f.profiles {
		if p.CustomerID() == customerID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) SetStripeCustomerID(_ context.Context, userID, customerID string) (bool, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return false, nil
	}
	if f.linkConflicts {
		winner := "cus_winner"
		p.StripeCustomerID = &winner
		return false, nil
	}
	if p.CustomerID() != "" {
		return false, nil
	}
	p.StripeCustomerID = &customerID
	return true, nil
}

func (f *fakeStore) UpsertSubscription(_ context.Context, upsert entity.SubscriptionUpsert, now time.Time) (*entity.DbSubscription, error) {
	f.upserts++
	subID := upsert.StripeSubscriptionID
	cusID := upsert.StripeCustomerID
	row, ok := f.subs[upsert.UserID]
	if !ok {
		row = &entity.DbSubscription{ID: uint(len(f.subs) + 1), UserID: upsert.UserID, StartDate: now}
		f.subs[upsert.UserID] = row
	}
	row.Plan = upsert.Plan
	row.Status = upsert.Status
	row.StripeSubscriptionID = &subID
	row.StripeCustomerID = &cusID
	row.CurrentPeriodEnd = upsert.CurrentPeriodEnd
	copied := *row
	return &copied, nil
}

func (f *fakeStore) CancelSubscription(_ context.Context, stripeSubscriptionID string, endDate time.Time) (int64, error) {
	for _, row := range f.subs {
		if row.StripeSubscriptionID != nil && *row.StripeSubscriptionID == stripeSubscriptionID {
			row.Status = entity.SubscriptionStatusCanceled
			end := endDate
			row.EndDate = &end
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) GetSubscriptionByStripeID(_ context.Context, stripeSubscriptionID string) (*entity.DbSubscription, error) {
	for _, row := range f.subs {
		if row.StripeSubscriptionID != nil && *row.StripeSubscriptionID == stripeSubscriptionID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) HasWebhookEvent(_ context.Context, id string) (bool, error) {
	_, ok := f.events[id]
	return ok, nil
}

func (f *fakeStore) SaveWebhookEvent(_ context.Context, event *entity.DbWebhookEvent) error {
	f.events[event.ID] = *event
	return nil
}

type fakeGateway struct {
	customers       map[string]*stripe.Customer
	created         []string
	checkoutParams  *stripe.CheckoutSessionParams
	portalParams    *stripe.BillingPortalSessionParams
	getCustomerErr  error
	getCustomerCall int
}

func (g *fakeGateway) GetCustomer(_ context.Context, customerID string) (*stripe.Customer, error) {
	g.getCustomerCall++
	if g.getCustomerErr != nil {
		return nil, g.getCustomerErr
	}
	if c, ok := g.customers[customerID]; ok {
		return c, nil
	}
	return nil, errors.New("no such customer")
}

func (g *fakeGateway) CreateCustomer(_ context.Context, email, _, userID string) (*stripe.Customer, error) {
	g.created = append(g.created, userID)
	return &stripe.Customer{ID: "cus_new", Email: email, Metadata: map[string]string{"user_id": userID}}, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.checkoutParams = params
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	g.portalParams = params
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/session"}, nil
}

type recordingNotifier struct {
	events []realtime.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event realtime.Event) {
	r.events = append(r.events, event)
}

func subscriptionEvent(t *testing.T, id, eventType string, object map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	return stripe.Event{ID: id, Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func proSubscription(metadata map[string]string) map[string]any {
	return map[string]any{
		"id":                 "sub_123",
		"object":             "subscription",
		"customer":           "cus_123",
		"status":             "active",
		"current_period_end": 1712000000,
		"metadata":           metadata,
		"items": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":    "si_1",
				"price": map[string]any{"id": "price_1", "lookup_key": "pro"},
			}},
		},
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.created","data":{"object":{"id":"sub_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret})

	event, err := NewVerifier(testSecret).Verify(payload, signed.Header)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if event.ID != "evt_1" || string(event.Type) != EventSubscriptionCreated {
		t.Fatalf("unexpected event %+v", event)
	}

	tests := []struct {
		name     string
		verifier *Verifier
		header   string
	}{
		{name: "missing header", verifier: NewVerifier(testSecret), header: ""},
		{name: "missing secret", verifier: NewVerifier(""), header: signed.Header},
		{name: "wrong secret", verifier: NewVerifier("whsec_other"), header: signed.Header},
		{name: "garbage header", verifier: NewVerifier(testSecret), header: "t=1,v1=deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(payload, tt.header)
			var webhookErr *WebhookError
			if !errors.As(err, &webhookErr) {
				t.Fatalf("expected WebhookError, got %v", err)
			}
		})
	}
}

func TestHandleUpsertIsIdempotent(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	reconciler := NewReconciler(store, &fakeGateway{}, notifier)
	event := subscriptionEvent(t, "evt_1", EventSubscriptionCreated, proSubscription(map[string]string{"user_id": "u1"}))

	for i := 0; i < 2; i++ {
		if err := reconciler.Handle(context.Background(), event); err != nil {
			t.Fatalf("Handle #%d: %v", i+1, err)
		}
	}

	if len(store.subs) != 1 {
		t.Fatalf("expected one subscription row, got %d", len(store.subs))
	}
	row := store.subs["u1"]
	if row.Plan != "pro" || row.Status != "active" || *row.StripeSubscriptionID != "sub_123" || *row.StripeCustomerID != "cus_123" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.CurrentPeriodEnd == nil || row.CurrentPeriodEnd.Unix() != 1712000000 {
		t.Fatalf("unexpected period end %v", row.CurrentPeriodEnd)
	}
	if store.upserts != 1 {
		t.Fatalf("redelivered event must not be applied again, upserts=%d", store.upserts)
	}
	if len(notifier.events) != 1 || notifier.events[0].Topic != realtime.TopicSubscription {
		t.Fatalf("unexpected notifications %+v", notifier.events)
	}

	replay := subscriptionEvent(t, "evt_2", EventSubscriptionUpdated, proSubscription(map[string]string{"user_id": "u1"}))
	if err := reconciler.Handle(context.Background(), replay); err != nil {
		t.Fatalf("Handle replay: %v", err)
	}
	if len(store.subs) != 1 || store.subs["u1"].Plan != "pro" {
		t.Fatalf("replaying the same state must converge, got %+v", store.subs)
	}
}

func TestHandleResolvesUserFromProfileThenCustomer(t *testing.T) {
	store := newFakeStore()
	customerID := "cus_123"
	store.profiles["u-profile"] = &entity.DbProfile{ID: "u-profile", StripeCustomerID: &customerID}
	gateway := &fakeGateway{}
	reconciler := NewReconciler(store, gateway, nil)

	if err := reconciler.Handle(context.Background(), subscriptionEvent(t, "evt_1", EventSubscriptionCreated, proSubscription(nil))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := store.subs["u-profile"]; !ok {
		t.Fatalf("expected subscription for profile owner, got %+v", store.subs)
	}
	if gateway.getCustomerCall != 0 {
		t.Fatalf("gateway must not be called when the profile resolves the user")
	}

	store = newFakeStore()
	gateway = &fakeGateway{customers: map[string]*stripe.Customer{
		"cus_123": {ID: "cus_123", Metadata: map[string]string{"user_id": "u-meta"}},
	}}
	reconciler = NewReconciler(store, gateway, nil)
	if err := reconciler.Handle(context.Background(), subscriptionEvent(t, "evt_2", EventSubscriptionCreated, proSubscription(nil))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := store.subs["u-meta"]; !ok {
		t.Fatalf("expected subscription for customer metadata owner, got %+v", store.subs)
	}
}

func TestHandleUnresolvedUserFails(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{getCustomerErr: errors.New("stripe down")}
	err := NewReconciler(store, gateway, nil).Handle(context.Background(), subscriptionEvent(t, "evt_1", EventSubscriptionCreated, proSubscription(nil)))

	var webhookErr *WebhookError
	if !errors.As(err, &webhookErr) {
		t.Fatalf("expected WebhookError, got %v", err)
	}
	if _, seen := store.events["evt_1"]; seen {
		t.Fatal("failed events must stay retryable")
	}
}

func TestHandlePlanFallsBackToUnknown(t *testing.T) {
	store := newFakeStore()
	object := proSubscription(map[string]string{"user_id": "u1"})
	object["items"] = map[string]any{"object": "list", "data": []any{map[string]any{"id": "si_1", "price": map[string]any{"id": "price_1"}}}}

	if err := NewReconciler(store, nil, nil).Handle(context.Background(), subscriptionEvent(t, "evt_1", EventSubscriptionUpdated, object)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := store.subs["u1"].Plan; got != entity.PlanUnknown {
		t.Fatalf("expected unknown plan, got %q", got)
	}
}

func TestHandleDeleted(t *testing.T) {
	store := newFakeStore()
	reconciler := NewReconciler(store, nil, nil)
	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	reconciler.now = func() time.Time { return fixed }

	deleted := subscriptionEvent(t, "evt_del_unknown", EventSubscriptionDeleted, map[string]any{"id": "sub_missing", "object": "subscription"})
	if err := reconciler.Handle(context.Background(), deleted); err != nil {
		t.Fatalf("unknown subscription must be acknowledged, got %v", err)
	}
	if len(store.subs) != 0 {
		t.Fatalf("no row may be created, got %+v", store.subs)
	}

	if err := reconciler.Handle(context.Background(), subscriptionEvent(t, "evt_1", EventSubscriptionCreated, proSubscription(map[string]string{"user_id": "u1"}))); err != nil {
		t.Fatalf("Handle created: %v", err)
	}
	deleted = subscriptionEvent(t, "evt_del", EventSubscriptionDeleted, map[string]any{"id": "sub_123", "object": "subscription"})
	if err := reconciler.Handle(context.Background(), deleted); err != nil {
		t.Fatalf("Handle deleted: %v", err)
	}
	row := store.subs["u1"]
	if row.Status != entity.SubscriptionStatusCanceled || row.EndDate == nil || !row.EndDate.Equal(fixed) {
		t.Fatalf("unexpected row after delete %+v", row)
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	store := newFakeStore()
	event := stripe.Event{ID: "evt_inv", Type: "invoice.paid", Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"in_1"}`)}}
	if err := NewReconciler(store, nil, nil).Handle(context.Background(), event); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if store.upserts != 0 || len(store.events) != 0 {
		t.Fatal("ignored events must not change state")
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = &entity.DbProfile{ID: "u1", Email: "a@example.com"}
	gateway := &fakeGateway{}
	checkout := NewCheckout(store, gateway)

	session, err := checkout.CreateCheckoutSession(context.Background(), "u1", "price_pro", "https://app.example.com/")
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.ID != "cs_test_1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if store.profiles["u1"].CustomerID() != "cus_new" {
		t.Fatalf("expected customer to be linked")
	}

	params := gateway.checkoutParams
	if *params.Customer != "cus_new" || *params.Mode != "subscription" {
		t.Fatalf("unexpected params %+v", params)
	}
	if len(params.LineItems) != 1 || *params.LineItems[0].Price != "price_pro" || *params.LineItems[0].Quantity != 1 {
		t.Fatalf("unexpected line items %+v", params.LineItems)
	}
	if *params.SuccessURL != "https://app.example.com/account?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected success url %q", *params.SuccessURL)
	}
	if *params.CancelURL != "https://app.example.com/account" {
		t.Fatalf("unexpected cancel url %q", *params.CancelURL)
	}

	if _, err := checkout.CreateCheckoutSession(context.Background(), "u1", "price_pro", "https://app.example.com"); err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if len(gateway.created) != 1 {
		t.Fatalf("customer must be created once, got %d", len(gateway.created))
	}
}

func TestCreateCheckoutSessionLostRace(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = &entity.DbProfile{ID: "u1", Email: "a@example.com"}
	store.linkConflicts = true
	gateway := &fakeGateway{}

	if _, err := NewCheckout(store, gateway).CreateCheckoutSession(context.Background(), "u1", "price_pro", "https://app.example.com"); err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if got := *gateway.checkoutParams.Customer; got != "cus_winner" {
		t.Fatalf("expected the linked customer to win, got %q", got)
	}
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	store := newFakeStore()
	checkout := NewCheckout(store, &fakeGateway{})

	if _, err := checkout.CreateCheckoutSession(context.Background(), "", "price_pro", ""); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing field error, got %v", err)
	}
	if _, err := checkout.CreateCheckoutSession(context.Background(), "ghost", "price_pro", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreatePortalSession(t *testing.T) {
	store := newFakeStore()
	customerID := "cus_123"
	store.profiles["u1"] = &entity.DbProfile{ID: "u1", StripeCustomerID: &customerID}
	store.profiles["u2"] = &entity.DbProfile{ID: "u2"}
	gateway := &fakeGateway{}
	checkout := NewCheckout(store, gateway)

	url, err := checkout.CreatePortalSession(context.Background(), "u1", "https://app.example.com/account")
	if err != nil {
		t.Fatalf("CreatePortalSession: %v", err)
	}
	if url == "" || *gateway.portalParams.Customer != "cus_123" || *gateway.portalParams.ReturnURL != "https://app.example.com/account" {
		t.Fatalf("unexpected portal call %q %+v", url, gateway.portalParams)
	}

	if _, err := checkout.CreatePortalSession(context.Background(), "u2", ""); err == nil {
		t.Fatal("expected error for user without billing account")
	}
}
