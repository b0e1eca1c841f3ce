// Package resource keeps local, ordered mirrors of the site's remote
// collections in step with the record store and the asset store.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/metrics"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/toast"
)

// Records is the slice of store.Table a hook needs.
type Records[T any] interface {
	List(ctx context.Context, q store.Query) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, rec *T) error
	Update(ctx context.Context, id string, cols map[string]any) (T, error)
	Delete(ctx context.Context, id string) error
}

type Assets interface {
	Upload(ctx context.Context, bucket, name string, r io.Reader, opts asset.Options) error
	PublicURL(bucket, name string) string
	Remove(ctx context.Context, bucket string, names ...string) error
}

// Upload is a file attached to a create or update.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// messages are the toast texts of one resource. createFailed replaces
// the store's error text when an insert is rejected.
type messages struct {
	created, updated, deleted string
	createFailed              string
}

type hookConfig[T any] struct {
	resource string
	bucket   string
	folder   string
	upload   asset.Options
	query    store.Query
	// assetColumn is written with the public URL of an uploaded file.
	assetColumn string
	assetURL    func(T) string
	msgs        messages
}

// Hook is the shared machinery behind Members and Events.
type Hook[T any] struct {
	cfg     hookConfig[T]
	records Records[T]
	assets  Assets
	toasts  toast.Notifier
	cache   *Cache[T]
	locks   keyedMutex
	log     *slog.Logger
}

func newHook[T any](cfg hookConfig[T], records Records[T], assets Assets, toasts toast.Notifier, cache *Cache[T]) *Hook[T] {
	if toasts == nil {
		toasts = toast.Log{}
	}
	return &Hook[T]{
		cfg:     cfg,
		records: records,
		assets:  assets,
		toasts:  toasts,
		cache:   cache,
		log:     slog.Default().With("component", cfg.resource),
	}
}

// List refetches the collection. A failure is kept in Err and the previous
// items stay visible.
func (h *Hook[T]) List(ctx context.Context) error {
	start := time.Now()
	items, err := h.records.List(ctx, h.cfg.query)
	metrics.Observe(h.cfg.resource, "list", start, err)
	if err != nil {
		h.cache.Fail(err)
		h.log.Error(h.cfg.resource+".list.failed", "err", err)
		return err
	}
	h.cache.Reset(items)
	return nil
}

func (h *Hook[T]) Items() []T    { return h.cache.Snapshot() }
func (h *Hook[T]) Loading() bool { return h.cache.Loading() }
func (h *Hook[T]) Err() error    { return h.cache.Err() }

// Delete removes the record and then, best effort, its stored file.
func (h *Hook[T]) Delete(ctx context.Context, id string) (err error) {
	unlock := h.locks.Lock(id)
	defer unlock()
	start := time.Now()
	defer func() { h.finish("delete", start, err, h.cfg.msgs.deleted, "") }()

	current, err := h.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := h.records.Delete(ctx, id); err != nil {
		return err
	}
	h.removeAsset(ctx, h.cfg.assetURL(current))
	h.cache.RemoveByID(id)
	return nil
}

// create uploads the optional file, then inserts the record build returns
// for the resolved asset URL ("" when nothing was uploaded).
func (h *Hook[T]) create(ctx context.Context, up *Upload, build func(assetURL string) T) (rec T, err error) {
	start := time.Now()
	var failMsg string
	defer func() { h.finish("create", start, err, h.cfg.msgs.created, failMsg) }()

	url, err := h.upload(ctx, up)
	if err != nil {
		return rec, err
	}
	rec = build(url)
	if err := h.records.Insert(ctx, &rec); err != nil {
		failMsg = h.cfg.msgs.createFailed
		var zero T
		return zero, err
	}
	h.cache.InsertSorted(rec)
	return rec, nil
}

func (h *Hook[T]) update(ctx context.Context, id string, cols map[string]any, up *Upload) (rec T, err error) {
	unlock := h.locks.Lock(id)
	defer unlock()
	start := time.Now()
	defer func() { h.finish("update", start, err, h.cfg.msgs.updated, "") }()

	url, err := h.upload(ctx, up)
	if err != nil {
		return rec, err
	}
	if url != "" {
		cols[h.cfg.assetColumn] = url
	}
	rec, err = h.records.Update(ctx, id, cols)
	if err != nil {
		var zero T
		return zero, err
	}
	h.cache.ReplaceByID(rec)
	return rec, nil
}

func (h *Hook[T]) upload(ctx context.Context, up *Upload) (string, error) {
	if up == nil || up.Body == nil {
		return "", nil
	}
	name := asset.ObjectName(h.cfg.folder, up.Filename)
	opts := h.cfg.upload
	opts.ContentType = up.ContentType
	if err := h.assets.Upload(ctx, h.cfg.bucket, name, up.Body, opts); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return h.assets.PublicURL(h.cfg.bucket, name), nil
}

func (h *Hook[T]) removeAsset(ctx context.Context, url string) {
	if url == "" {
		return
	}
	path, err := asset.PathFromURL(url, h.cfg.bucket)
	if err != nil {
		h.log.Warn(h.cfg.resource+".asset.path", "url", url, "err", err)
		return
	}
	if err := h.assets.Remove(ctx, h.cfg.bucket, path); err != nil {
		h.log.Warn(h.cfg.resource+".asset.remove.failed", "path", path, "err", err)
	}
}

// finish emits the one terminal toast of a mutation. failMsg, when set,
// is shown instead of the error text.
func (h *Hook[T]) finish(op string, start time.Time, err error, okMsg, failMsg string) {
	metrics.Observe(h.cfg.resource, op, start, err)
	if err != nil {
		h.log.Error(h.cfg.resource+"."+op+".failed", "err", err)
		if failMsg == "" {
			failMsg = toastMessage(err)
		}
		h.toasts.Error(failMsg)
		return
	}
	h.toasts.Success(okMsg)
}

// toastMessage is the outermost error text, without the store's wrapping
// of driver errors for not found records.
func toastMessage(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return "Record not found"
	}
	return err.Error()
}
