package resource

import (
	"context"
	"sync"
	"time"
)

// Session is one signed-in token using a mailbox. A zero Expires never
// expires.
type Session struct {
	ID      string
	Expires time.Time
}

type mailboxEntry struct {
	box      *Mailbox
	sessions map[string]time.Time
	timer    *time.Timer
}

// Mailboxes keeps one bound Mailbox per signed-in user, shared by all of
// that user's sessions. A mailbox is bound on first use and closed when its
// last session signs out or expires.
type Mailboxes struct {
	store NotificationStore

	mu    sync.Mutex
	boxes map[string]*mailboxEntry
}

func NewMailboxes(s NotificationStore) *Mailboxes {
	return &Mailboxes{store: s, boxes: map[string]*mailboxEntry{}}
}

// For returns userID's mailbox and records s as one of its sessions.
func (r *Mailboxes) For(ctx context.Context, userID string, s Session) (*Mailbox, error) {
	r.mu.Lock()
	e, ok := r.boxes[userID]
	if ok {
		r.track(userID, e, s)
		r.mu.Unlock()
		return e.box, nil
	}
	e = &mailboxEntry{box: NewMailbox(r.store), sessions: map[string]time.Time{}}
	r.boxes[userID] = e
	r.track(userID, e, s)
	r.mu.Unlock()

	if err := e.box.Bind(ctx, userID); err != nil {
		r.mu.Lock()
		if r.boxes[userID] == e {
			r.drop(userID, e)
		}
		r.mu.Unlock()
		e.box.Close()
		return nil, err
	}
	return e.box, nil
}

// Release ends one session. The mailbox is closed once no session is left.
func (r *Mailboxes) Release(userID, sessionID string) {
	r.mu.Lock()
	e, ok := r.boxes[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(e.sessions, sessionID)
	if len(e.sessions) > 0 {
		r.schedule(userID, e)
		r.mu.Unlock()
		return
	}
	r.drop(userID, e)
	r.mu.Unlock()
	e.box.Close()
}

func (r *Mailboxes) Close() {
	r.mu.Lock()
	boxes := r.boxes
	r.boxes = map[string]*mailboxEntry{}
	for _, e := range boxes {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	r.mu.Unlock()
	for _, e := range boxes {
		e.box.Close()
	}
}

// track must be called with r.mu held.
func (r *Mailboxes) track(userID string, e *mailboxEntry, s Session) {
	if cur, ok := e.sessions[s.ID]; !ok || (!cur.IsZero() && (s.Expires.IsZero() || s.Expires.After(cur))) {
		e.sessions[s.ID] = s.Expires
	}
	r.schedule(userID, e)
}

// schedule arms the entry's timer for its latest session expiry. It must be
// called with r.mu held.
func (r *Mailboxes) schedule(userID string, e *mailboxEntry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	var latest time.Time
	for _, exp := range e.sessions {
		if exp.IsZero() {
			return
		}
		if exp.After(latest) {
			latest = exp
		}
	}
	e.timer = time.AfterFunc(time.Until(latest), func() { r.expire(userID, e) })
}

func (r *Mailboxes) expire(userID string, e *mailboxEntry) {
	r.mu.Lock()
	if r.boxes[userID] != e {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	for id, exp := range e.sessions {
		if !exp.IsZero() && !exp.After(now) {
			delete(e.sessions, id)
		}
	}
	if len(e.sessions) > 0 {
		r.schedule(userID, e)
		r.mu.Unlock()
		return
	}
	r.drop(userID, e)
	r.mu.Unlock()
	e.box.log.Info("mailbox.expired", "user", userID)
	e.box.Close()
}

func (r *Mailboxes) drop(userID string, e *mailboxEntry) {
	delete(r.boxes, userID)
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
