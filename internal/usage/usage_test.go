package usage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/realtime"
	"imagestudio/internal/utils"
)

type fakeStore struct {
	mu            sync.Mutex
	stats         []entity.DbUsageStats
	subs          []entity.DbSubscription
	listErr       error
	resetStart    time.Time
	requests      []entity.DbApiRequest
	createErr     error
	increments    []entity.UsageKind
	incrementErr  error
	ensureCalls   int
	resetRequests int
}

func (f *fakeStore) EnsureUsageStats(context.Context, string, time.Time) error {
	f.ensureCalls++
	return nil
}

func (f *fakeStore) ResetUsageIfStale(_ context.Context, _ string, periodStart, _ time.Time) error {
	f.resetRequests++
	f.resetStart = periodStart
	return nil
}

func (f *fakeStore) ListUsageStatsByUser(context.Context, string) ([]entity.DbUsageStats, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stats, nil
}

func (f *fakeStore) ListSubscriptionsByUser(context.Context, string) ([]entity.DbSubscription, error) {
	return f.subs, nil
}

func (f *fakeStore) CreateApiRequest(_ context.Context, request *entity.DbApiRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.requests = append(f.requests, *request)
	return nil
}

func (f *fakeStore) IncrementUsage(_ context.Context, _ string, kind entity.UsageKind, _ time.Time) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments = append(f.increments, kind)
	return nil
}

type recordingNotifier struct {
	events []realtime.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event realtime.Event) {
	r.events = append(r.events, event)
}

type countingChecker struct {
	calls   int
	allowed bool
	err     error
}

func (c *countingChecker) Allow(context.Context, string, entity.UsageKind) (bool, error) {
	c.calls++
	return c.allowed, c.err
}

func fastPolicy() utils.RetryPolicy {
	return utils.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}
}

func TestPlanQuotaAllow(t *testing.T) {
	active := func(plan string) []entity.DbSubscription {
		return []entity.DbSubscription{{UserID: "u1", Plan: plan, Status: entity.SubscriptionStatusActive}}
	}

	tests := []struct {
		name  string
		stats []entity.DbUsageStats
		subs  []entity.DbSubscription
		kind  entity.UsageKind
		want  bool
	}{
		{name: "no rows yet", kind: entity.UsageGenerate, want: true},
		{name: "free under limit", stats: []entity.DbUsageStats{{GeneratedImages: 9}}, kind: entity.UsageGenerate, want: true},
		{name: "free at limit", stats: []entity.DbUsageStats{{GeneratedImages: 10}}, kind: entity.UsageGenerate, want: false},
		{name: "free edit limit", stats: []entity.DbUsageStats{{EditedImages: 5}}, kind: entity.UsageEdit, want: false},
		{name: "pro lifts limit", stats: []entity.DbUsageStats{{GeneratedImages: 10}}, subs: active(entity.PlanPro), kind: entity.UsageGenerate, want: true},
		{
			name:  "canceled pro falls back to free",
			stats: []entity.DbUsageStats{{GeneratedImages: 10}},
			subs:  []entity.DbSubscription{{Plan: entity.PlanPro, Status: entity.SubscriptionStatusCanceled}},
			kind:  entity.UsageGenerate,
			want:  false,
		},
		{name: "enterprise unlimited", stats: []entity.DbUsageStats{{GeneratedImages: 100000}}, subs: active(entity.PlanEnterprise), kind: entity.UsageGenerate, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{stats: tt.stats, subs: tt.subs}
			quota := NewPlanQuota(store)
			quota.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

			got, err := quota.Allow(context.Background(), "u1", tt.kind)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !store.resetStart.Equal(want) {
				t.Fatalf("expected period start %v, got %v", want, store.resetStart)
			}
		})
	}
}

func TestPlanQuotaRejectsDuplicates(t *testing.T) {
	store := &fakeStore{stats: []entity.DbUsageStats{{ID: 1}, {ID: 2}}}
	_, err := NewPlanQuota(store).Allow(context.Background(), "u1", entity.UsageGenerate)
	if !errors.Is(err, ErrCorruptUsage) {
		t.Fatalf("expected ErrCorruptUsage, got %v", err)
	}
}

func TestCheckQuotaDuplicateRowsAreNotRetried(t *testing.T) {
	for name, store := range map[string]*fakeStore{
		"usage rows":    {stats: []entity.DbUsageStats{{ID: 1}, {ID: 2}}},
		"subscriptions": {subs: []entity.DbSubscription{{ID: 1}, {ID: 2}}},
	} {
		t.Run(name, func(t *testing.T) {
			tracker := NewTracker(NewPlanQuota(store), store, nil).WithRetryPolicy(fastPolicy())
			if tracker.CheckQuota(context.Background(), "u1", entity.UsageGenerate) {
				t.Fatal("expected deny on duplicate rows")
			}
			if store.ensureCalls != 1 {
				t.Fatalf("expected a single attempt, got %d", store.ensureCalls)
			}
		})
	}
}

func TestCheckQuotaFailsClosedAfterRetries(t *testing.T) {
	checker := &countingChecker{err: errors.New("connection refused")}
	tracker := NewTracker(checker, &fakeStore{}, nil).WithRetryPolicy(fastPolicy())

	if tracker.CheckQuota(context.Background(), "u1", entity.UsageGenerate) {
		t.Fatal("expected deny on persistent error")
	}
	if checker.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", checker.calls)
	}
}

func TestCheckQuotaDenialIsNotRetried(t *testing.T) {
	checker := &countingChecker{allowed: false}
	tracker := NewTracker(checker, &fakeStore{}, nil).WithRetryPolicy(fastPolicy())

	if tracker.CheckQuota(context.Background(), "u1", entity.UsageEdit) {
		t.Fatal("expected deny")
	}
	if checker.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", checker.calls)
	}
}

func TestCheckQuotaWithoutChecker(t *testing.T) {
	tracker := NewTracker(nil, &fakeStore{}, nil)
	if tracker.CheckQuota(context.Background(), "u1", entity.UsageGenerate) {
		t.Fatal("expected deny without checker")
	}
}

func TestRecordRequest(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(&countingChecker{allowed: true}, store, nil)
	started := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return started.Add(1500 * time.Millisecond) }

	tracker.RecordRequest(context.Background(), RequestLog{
		UserID:    "u1",
		Endpoint:  "generate_image",
		StartedAt: started,
		Status:    200,
		UserAgent: strings.Repeat("a", 600),
		IPAddress: "10.0.0.1",
	})

	if len(store.requests) != 1 {
		t.Fatalf("expected one row, got %d", len(store.requests))
	}
	row := store.requests[0]
	if row.ResponseTimeMs != 1500 || row.Status != 200 || row.Endpoint != "generate_image" {
		t.Fatalf("unexpected row %+v", row)
	}
	if len(row.UserAgent) != 512 {
		t.Fatalf("expected user agent to be truncated, got %d", len(row.UserAgent))
	}
}

func TestRecordRequestSwallowsErrors(t *testing.T) {
	store := &fakeStore{createErr: errors.New("disk full")}
	tracker := NewTracker(&countingChecker{allowed: true}, store, nil)
	tracker.RecordRequest(context.Background(), RequestLog{UserID: "u1", Endpoint: "edit_image", Status: 500})
}

func TestIncrementUsageNotifies(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	tracker := NewTracker(&countingChecker{allowed: true}, store, notifier)

	tracker.IncrementUsage(context.Background(), "u1", entity.UsageEdit)

	if len(store.increments) != 1 || store.increments[0] != entity.UsageEdit {
		t.Fatalf("unexpected increments %v", store.increments)
	}
	if len(notifier.events) != 1 || notifier.events[0].Topic != realtime.TopicUsage {
		t.Fatalf("unexpected events %+v", notifier.events)
	}

	store.incrementErr = errors.New("locked")
	tracker.IncrementUsage(context.Background(), "u1", entity.UsageEdit)
	if len(notifier.events) != 1 {
		t.Fatal("failed increments must not publish")
	}
}

func TestAllOf(t *testing.T) {
	deny := &countingChecker{allowed: false}
	allow := &countingChecker{allowed: true}

	ok, err := AllOf(allow, nil, deny, allow).Allow(context.Background(), "u1", entity.UsageGenerate)
	if err != nil || ok {
		t.Fatalf("expected deny, got %v %v", ok, err)
	}
	if allow.calls != 1 {
		t.Fatalf("expected short circuit after deny, allow called %d times", allow.calls)
	}

	ok, err = AllOf().Allow(context.Background(), "u1", entity.UsageGenerate)
	if err != nil || !ok {
		t.Fatalf("empty AllOf should allow, got %v %v", ok, err)
	}
}

func TestRedisWindow(t *testing.T) {
	disabled := NewRedisWindow(nil, 0)
	ok, err := disabled.Allow(context.Background(), "u1", entity.UsageGenerate)
	if err != nil || !ok {
		t.Fatalf("disabled window should allow, got %v %v", ok, err)
	}

	window := NewRedisWindow(nil, 5)
	window.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 42, 0, time.UTC) }
	if got, want := window.key("u1", entity.UsageEdit), "imagestudio:rate:edit:u1:1709978400"; got != want {
		t.Fatalf("expected key %q, got %q", want, got)
	}
	if _, err := window.Allow(context.Background(), "u1", entity.UsageEdit); err == nil {
		t.Fatal("expected error without redis client")
	}
}
