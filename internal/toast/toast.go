// Package toast is the transient notification channel: short success and
// failure messages shown to whoever is watching the admin UI.
package toast

import (
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier fires toasts; nothing is returned to the caller.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Log writes toasts to the structured log.
type Log struct{ Logger *slog.Logger }

func (l Log) Success(msg string) { l.logger().Info("toast", "level", LevelSuccess, "message", msg) }
func (l Log) Error(msg string)   { l.logger().Warn("toast", "level", LevelError, "message", msg) }

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Hub fans toasts out to live subscribers (SSE streams). A subscriber
// that is not keeping up misses toasts rather than blocking the sender.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Toast]struct{}
	closed bool
}

func NewHub() *Hub { return &Hub{subs: map[chan Toast]struct{}{}} }

func (h *Hub) Success(msg string) { h.send(Toast{Level: LevelSuccess, Message: msg, At: time.Now()}) }
func (h *Hub) Error(msg string)   { h.send(Toast{Level: LevelError, Message: msg, At: time.Now()}) }

// Subscribe returns a channel of toasts and a cancel func that must be
// called to release it. The channel is closed by cancel or Close.
func (h *Hub) Subscribe() (<-chan Toast, func()) {
	ch := make(chan Toast, 16)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs[ch] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Close ends every subscription; later subscribers get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) send(t Toast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Recorder keeps every toast; used by tests.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Error(msg string)   { r.add(LevelError, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: msg, At: time.Now()})
}

func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast, or a zero Toast.
func (r *Recorder) Last() Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

// Multi sends every toast to all of its notifiers.
type Multi []Notifier

func (m Multi) Success(msg string) {
	for _, n := range m {
		n.Success(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}
