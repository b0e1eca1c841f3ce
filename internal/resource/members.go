package resource

import (
	"context"

	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/toast"
)

const (
	MembersBucket = "members"
	MembersFolder = "members"
)

// Members mirrors the members table, newest first.
type Members struct {
	*Hook[model.Member]
}

func NewMembers(records Records[model.Member], assets Assets, toasts toast.Notifier) *Members {
	cache := NewCache(
		func(a, b model.Member) bool { return a.CreatedAt.After(b.CreatedAt) },
		func(m model.Member) string { return m.ID },
	)
	cfg := hookConfig[model.Member]{
		resource:    "members",
		bucket:      MembersBucket,
		folder:      MembersFolder,
		query:       store.Query{OrderBy: "created_at", Desc: true},
		assetColumn: "photo_url",
		assetURL:    func(m model.Member) string { return m.PhotoURL },
		msgs: messages{
			created:      "Member added successfully",
			updated:      "Member updated successfully",
			deleted:      "Member deleted successfully",
			createFailed: "Failed to create member. Please try again.",
		},
	}
	return &Members{newHook(cfg, records, assets, toasts, cache)}
}

// Create inserts a member. An uploaded photo replaces f.PhotoURL; empty bio
// and contact are stored as absent.
func (m *Members) Create(ctx context.Context, f model.MemberFields, photo *Upload) (model.Member, error) {
	return m.create(ctx, photo, func(url string) model.Member {
		rec := model.Member{
			Name:        f.Name,
			Designation: f.Designation,
			PhotoURL:    f.PhotoURL,
			Bio:         optional(f.Bio),
			Contact:     optional(f.Contact),
		}
		if url != "" {
			rec.PhotoURL = url
		}
		return rec
	})
}

func (m *Members) Update(ctx context.Context, id string, p model.MemberPatch, photo *Upload) (model.Member, error) {
	return m.update(ctx, id, p.Columns(), photo)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
