package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Stream is an open subscription to one feed channel. Messages is closed
// after Close returns or the subscribing context ends.
type Stream interface {
	Messages() <-chan []byte
	Close() error
}

// Feed carries change events between the store and live subscribers.
type Feed interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Stream, error)
}

const streamBuffer = 64

// MemoryFeed is an in-process Feed for single-node deployments and tests.
// A subscriber whose buffer is full misses the message.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memStream]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: map[string]map[*memStream]struct{}{}}
}

func (f *MemoryFeed) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[channel] {
		select {
		case s.ch <- payload:
		default:
			slog.Warn("feed.drop", "channel", channel)
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, channel string) (Stream, error) {
	s := &memStream{feed: f, channel: channel, ch: make(chan []byte, streamBuffer)}
	f.mu.Lock()
	if f.subs[channel] == nil {
		f.subs[channel] = map[*memStream]struct{}{}
	}
	f.subs[channel][s] = struct{}{}
	f.mu.Unlock()
	s.stop = context.AfterFunc(ctx, s.shutdown)
	return s, nil
}

// Subscribers reports how many streams are open on channel.
func (f *MemoryFeed) Subscribers(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[channel])
}

type memStream struct {
	feed    *MemoryFeed
	channel string
	ch      chan []byte
	stop    func() bool
	once    sync.Once
}

func (s *memStream) Messages() <-chan []byte { return s.ch }

func (s *memStream) Close() error {
	s.stop()
	s.shutdown()
	return nil
}

func (s *memStream) shutdown() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.channel], s)
		if len(s.feed.subs[s.channel]) == 0 {
			delete(s.feed.subs, s.channel)
		}
		close(s.ch)
		s.feed.mu.Unlock()
	})
}

// RedisFeed fans change events out through redis pub/sub so every server
// instance sees inserts made by the others.
type RedisFeed struct {
	client *redis.Client
	prefix string
}

func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	return &RedisFeed{client: client, prefix: prefix}
}

func (f *RedisFeed) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := f.client.Publish(ctx, f.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, channel string) (Stream, error) {
	ps := f.client.Subscribe(ctx, f.prefix+channel)
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s := &redisStream{ps: ps, out: make(chan []byte, streamBuffer), done: make(chan struct{})}
	go s.pump()
	s.stop = context.AfterFunc(ctx, func() { s.shutdown() })
	return s, nil
}

type redisStream struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	stop func() bool
	once sync.Once
}

func (s *redisStream) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisStream) Messages() <-chan []byte { return s.out }

func (s *redisStream) Close() error {
	s.stop()
	return s.shutdown()
}

func (s *redisStream) shutdown() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
