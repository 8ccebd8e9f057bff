package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	TopicProfile      = "profile"
	TopicUsage        = "usage"
	TopicSubscription = "subscription"
	TopicImage        = "image"
)

const subscriberBuffer = 16

// Event 是推送给某个用户的一条变更通知。
type Event struct {
	UserID  string      `json:"user_id"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
}

// Notifier 是业务层唯一依赖的推送接口，发送失败不影响主流程。
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Hub 按用户维护本进程内的订阅者。
type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string][]chan Event)}
}

// Subscribe 返回事件通道和取消函数，取消后通道被关闭。
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	userID = strings.TrimSpace(userID)

	h.mu.Lock()
	h.subscribers[userID] = append(h.subscribers[userID], ch)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.unsubscribe(userID, ch)
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) unsubscribe(userID string, target chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.subscribers[userID]
	remaining := current[:0]
	for _, ch := range current {
		if ch != target {
			remaining = append(remaining, ch)
		}
	}
	if len(remaining) == 0 {
		delete(h.subscribers, userID)
		return
	}
	h.subscribers[userID] = remaining
}

// Publish 投递给本进程内该用户的所有订阅者，慢消费者会丢消息。
func (h *Hub) Publish(_ context.Context, event Event) {
	if h == nil || strings.TrimSpace(event.UserID) == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			logrus.WithFields(logrus.Fields{
				"user_id": event.UserID,
				"topic":   event.Topic,
			}).Warn("realtime_event_dropped")
		}
	}
}

// SubscriberCount 返回某用户当前的订阅数。
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}
