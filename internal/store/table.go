// Package store is the record store: typed gorm tables with ordered reads,
// partial updates and a change feed for inserts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrNoFeed         = errors.New("table has no change feed")
	ErrNotPartitioned = errors.New("column is not a feed partition")
)

const OpInsert = "INSERT"

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Value: value} }

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
}

// Change is the payload published on the feed for each insert.
type Change[T any] struct {
	Table  string `json:"table"`
	Type   string `json:"type"`
	Record T      `json:"record"`
}

type Table[T any] struct {
	db         *gorm.DB
	name       string
	feed       Feed
	partitions map[string]func(*T) string
}

type Option[T any] func(*Table[T])

// PartitionBy publishes inserts additionally on a per-value channel of
// column, which is what Subscribe with Eq(column, v) listens to.
func PartitionBy[T any](column string, key func(*T) string) Option[T] {
	return func(t *Table[T]) { t.partitions[column] = key }
}

// NewTable binds T to its table. feed may be nil, in which case inserts are
// not published and Subscribe fails with ErrNoFeed.
func NewTable[T any](db *gorm.DB, name string, feed Feed, opts ...Option[T]) *Table[T] {
	t := &Table[T]{db: db, name: name, feed: feed, partitions: map[string]func(*T) string{}}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) List(ctx context.Context, q Query) ([]T, error) {
	tx := where(t.db.WithContext(ctx).Model(new(T)), q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	var out []T
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	err := t.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("get %s %s: %w", t.name, id, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("get %s %s: %w", t.name, id, err)
	}
	return rec, nil
}

// Insert stores rec; the store fills in identity and timestamps. The insert
// is published after commit and a publish failure does not fail the insert.
func (t *Table[T]) Insert(ctx context.Context, rec *T) error {
	if err := t.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	t.publish(ctx, rec)
	return nil
}

// Update writes only the given columns and returns the stored row.
func (t *Table[T]) Update(ctx context.Context, id string, cols map[string]any) (T, error) {
	if len(cols) > 0 {
		err := t.db.WithContext(ctx).Model(new(T)).
			Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
			Updates(cols).Error
		if err != nil {
			var zero T
			return zero, fmt.Errorf("update %s %s: %w", t.name, id, err)
		}
	}
	return t.Get(ctx, id)
}

// UpdateWhere writes cols on every row matching filters and reports how
// many rows changed.
func (t *Table[T]) UpdateWhere(ctx context.Context, filters []Filter, cols map[string]any) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing unfiltered update", t.name)
	}
	res := where(t.db.WithContext(ctx).Model(new(T)), filters).Updates(cols)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, res.Error)
	}
	return res.RowsAffected, nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res := t.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", t.name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s %s: %w", t.name, id, ErrNotFound)
	}
	return nil
}

// Subscribe delivers every insert matching filter to fn on a dedicated
// goroutine until the subscription is closed. A zero Filter matches all
// inserts; otherwise the column must be a partition.
func (t *Table[T]) Subscribe(ctx context.Context, filter Filter, fn func(T)) (*Subscription, error) {
	if t.feed == nil {
		return nil, ErrNoFeed
	}
	channel := t.name
	if filter.Column != "" {
		if _, ok := t.partitions[filter.Column]; !ok {
			return nil, fmt.Errorf("subscribe %s.%s: %w", t.name, filter.Column, ErrNotPartitioned)
		}
		channel = partitionChannel(t.name, filter.Column, fmt.Sprint(filter.Value))
	}

	stream, err := t.feed.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{stream: stream, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for payload := range stream.Messages() {
			var ch Change[T]
			if err := json.Unmarshal(payload, &ch); err != nil {
				slog.Warn("feed.decode.failed", "table", t.name, "err", err)
				continue
			}
			if ch.Type == OpInsert {
				fn(ch.Record)
			}
		}
	}()
	return sub, nil
}

func (t *Table[T]) publish(ctx context.Context, rec *T) {
	if t.feed == nil {
		return
	}
	payload, err := json.Marshal(Change[T]{Table: t.name, Type: OpInsert, Record: *rec})
	if err != nil {
		slog.Warn("feed.encode.failed", "table", t.name, "err", err)
		return
	}
	channels := []string{t.name}
	for column, key := range t.partitions {
		channels = append(channels, partitionChannel(t.name, column, key(rec)))
	}
	for _, ch := range channels {
		if err := t.feed.Publish(ctx, ch, payload); err != nil {
			slog.Warn("feed.publish.failed", "channel", ch, "err", err)
		}
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	stream Stream
	done   chan struct{}
}

// Close stops delivery and waits until the delivering goroutine has
// returned, so fn is never called after Close. It must not be called
// from inside fn.
func (s *Subscription) Close() error {
	err := s.stream.Close()
	<-s.done
	return err
}

func partitionChannel(table, column, value string) string {
	return table + ":" + column + "=" + value
}

func where(tx *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
	}
	return tx
}
