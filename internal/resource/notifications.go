package resource

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/manish-shre/KKMS/internal/metrics"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/store"
)

// NotificationStore is what the mailbox needs from the notifications table.
type NotificationStore interface {
	List(ctx context.Context, q store.Query) ([]model.Notification, error)
	UpdateWhere(ctx context.Context, filters []store.Filter, cols map[string]any) (int64, error)
	Subscribe(ctx context.Context, filter store.Filter, fn func(model.Notification)) (*store.Subscription, error)
}

// Mailbox is one user's notifications with live inserts. It holds a feed
// subscription from Bind until Unbind or Close.
type Mailbox struct {
	store NotificationStore
	cache *Cache[model.Notification]
	log   *slog.Logger

	mu       sync.Mutex
	user     string
	gen      uint64
	sub      *store.Subscription
	watchers map[chan model.Notification]struct{}
	// listing counts reloads in flight; pending holds the live inserts
	// delivered meanwhile so the reload cannot drop them.
	listing int
	pending map[string]model.Notification
}

func NewMailbox(s NotificationStore) *Mailbox {
	return &Mailbox{
		store: s,
		cache: NewCache(
			func(a, b model.Notification) bool { return a.CreatedAt.After(b.CreatedAt) },
			func(n model.Notification) string { return n.ID },
		),
		log:      slog.Default().With("component", "mailbox"),
		watchers: map[chan model.Notification]struct{}{},
	}
}

// Bind switches the mailbox to userID: the previous subscription is closed,
// a new one filtered on user_id is opened and the list is reloaded.
// The subscription outlives ctx's cancellation; only Unbind or Close end it.
func (m *Mailbox) Bind(ctx context.Context, userID string) error {
	m.mu.Lock()
	old := m.sub
	m.sub = nil
	m.user = userID
	m.gen++
	m.pending = nil
	gen := m.gen
	m.mu.Unlock()
	m.release(old)
	m.cache.Reset(nil)

	if userID == "" {
		return nil
	}

	sub, err := m.store.Subscribe(context.WithoutCancel(ctx), store.Eq("user_id", userID), func(n model.Notification) {
		m.deliver(gen, n)
	})
	switch {
	case errors.Is(err, store.ErrNoFeed):
		m.log.Warn("mailbox.live.unavailable", "user", userID)
	case err != nil:
		return err
	default:
		metrics.SubscriptionOpened()
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			m.release(sub)
			return nil
		}
		m.sub = sub
		m.mu.Unlock()
	}

	m.List(ctx)
	return nil
}

// Unbind drops the identity and its subscription.
func (m *Mailbox) Unbind() {
	m.mu.Lock()
	old := m.sub
	m.sub = nil
	m.user = ""
	m.gen++
	m.pending = nil
	m.mu.Unlock()
	m.release(old)
	m.cache.Reset(nil)
}

// Close unbinds and ends every watcher.
func (m *Mailbox) Close() {
	m.Unbind()
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
}

func (m *Mailbox) User() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// List reloads the bound user's notifications, newest first. Live inserts
// that arrive while the query runs are kept.
func (m *Mailbox) List(ctx context.Context) {
	m.mu.Lock()
	user, gen := m.user, m.gen
	if user == "" {
		m.mu.Unlock()
		return
	}
	m.listing++
	m.mu.Unlock()

	items, err := m.store.List(ctx, store.Query{
		Filters: []store.Filter{store.Eq("user_id", user)},
		OrderBy: "created_at",
		Desc:    true,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listing--
	pending := m.pending
	if m.listing == 0 {
		m.pending = nil
	}
	if gen != m.gen {
		return
	}
	if err != nil {
		m.cache.Fail(err)
		m.log.Error("mailbox.list.failed", "user", user, "err", err)
		return
	}
	m.cache.Reset(items)
	for _, n := range pending {
		if !m.cache.Contains(n.ID) {
			m.cache.InsertSorted(n)
		}
	}
}

// MarkAsRead marks one of the user's notifications read. Failures are
// logged only.
func (m *Mailbox) MarkAsRead(ctx context.Context, id string) {
	user := m.User()
	if user == "" {
		return
	}
	_, err := m.store.UpdateWhere(ctx,
		[]store.Filter{store.Eq("id", id), store.Eq("user_id", user)},
		map[string]any{"is_read": true})
	if err != nil {
		m.log.Error("mailbox.read.failed", "id", id, "err", err)
		return
	}
	m.cache.Map(func(n model.Notification) model.Notification {
		if n.ID == id {
			n.IsRead = true
		}
		return n
	})
}

func (m *Mailbox) MarkAllAsRead(ctx context.Context) {
	user := m.User()
	if user == "" {
		return
	}
	_, err := m.store.UpdateWhere(ctx,
		[]store.Filter{store.Eq("user_id", user), store.Eq("is_read", false)},
		map[string]any{"is_read": true})
	if err != nil {
		m.log.Error("mailbox.read_all.failed", "user", user, "err", err)
		return
	}
	m.cache.Map(func(n model.Notification) model.Notification {
		n.IsRead = true
		return n
	})
}

func (m *Mailbox) Notifications() []model.Notification { return m.cache.Snapshot() }
func (m *Mailbox) Loading() bool                        { return m.cache.Loading() }
func (m *Mailbox) Err() error                           { return m.cache.Err() }

// UnreadCount is counted from the local items, never tracked separately.
func (m *Mailbox) UnreadCount() int {
	n := 0
	for _, v := range m.cache.Snapshot() {
		if !v.IsRead {
			n++
		}
	}
	return n
}

// Watch streams live inserts until cancel is called or the mailbox is
// closed. Slow watchers miss notifications.
func (m *Mailbox) Watch() (<-chan model.Notification, func()) {
	ch := make(chan model.Notification, 16)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.watchers[ch]; ok {
				delete(m.watchers, ch)
				close(ch)
			}
		})
	}
}

func (m *Mailbox) deliver(gen uint64, n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || n.UserID != m.user {
		return
	}
	if m.cache.Contains(n.ID) {
		return
	}
	m.cache.InsertSorted(n)
	if m.listing > 0 {
		if m.pending == nil {
			m.pending = map[string]model.Notification{}
		}
		m.pending[n.ID] = n
	}
	for ch := range m.watchers {
		select {
		case ch <- n:
		default:
		}
	}
}

func (m *Mailbox) release(sub *store.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		m.log.Warn("mailbox.unsubscribe.failed", "err", err)
	}
	metrics.SubscriptionClosed()
}
