package resource

import (
	"context"

	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/toast"
)

const (
	EventsBucket = "images"
	EventsFolder = "events"
)

// Events mirrors the events table in ascending date order.
type Events struct {
	*Hook[model.Event]
}

func NewEvents(records Records[model.Event], assets Assets, toasts toast.Notifier) *Events {
	cache := NewCache(
		func(a, b model.Event) bool { return a.EventDate < b.EventDate },
		func(e model.Event) string { return e.ID },
	)
	cfg := hookConfig[model.Event]{
		resource:    "events",
		bucket:      EventsBucket,
		folder:      EventsFolder,
		upload:      asset.Options{CacheControl: "3600"},
		query:       store.Query{OrderBy: "event_date"},
		assetColumn: "image_url",
		assetURL:    func(e model.Event) string { return e.ImageURL },
		msgs: messages{
			created:      "Event added successfully",
			updated:      "Event updated successfully",
			deleted:      "Event deleted successfully",
			createFailed: "Failed to create event. Please try again.",
		},
	}
	return &Events{newHook(cfg, records, assets, toasts, cache)}
}

func (e *Events) Create(ctx context.Context, f model.EventFields, image *Upload) (model.Event, error) {
	return e.create(ctx, image, func(url string) model.Event {
		rec := model.Event{
			Title:       f.Title,
			Description: f.Description,
			EventDate:   f.EventDate,
			Location:    f.Location,
			ImageURL:    f.ImageURL,
			IsFeatured:  f.IsFeatured,
		}
		if url != "" {
			rec.ImageURL = url
		}
		return rec
	})
}

func (e *Events) Update(ctx context.Context, id string, p model.EventPatch, image *Upload) (model.Event, error) {
	return e.update(ctx, id, p.Columns(), image)
}
