package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func strp(s string) *string { return &s }

func TestTableCRUD(t *testing.T) {
	ctx := context.Background()
	members := NewTable[model.Member](storetest.Open(t), "members", nil)

	first := model.Member{Name: "Asha", Designation: "Secretary", PhotoURL: "default.png"}
	require.NoError(t, members.Insert(ctx, &first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := model.Member{Name: "Ravi", Designation: "Treasurer", Bio: strp("hello")}
	require.NoError(t, members.Insert(ctx, &second))

	list, err := members.List(ctx, Query{OrderBy: "created_at", Desc: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	updated, err := members.Update(ctx, second.ID, map[string]any{"bio": ""})
	require.NoError(t, err)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "", *updated.Bio)
	assert.Equal(t, "Treasurer", updated.Designation)

	got, err := members.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	require.NoError(t, members.Delete(ctx, first.ID))
	_, err = members.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, members.Delete(ctx, first.ID), ErrNotFound)
}

func TestTableListFilters(t *testing.T) {
	ctx := context.Background()
	notes := NewTable[model.Notification](storetest.Open(t), "notifications", nil)

	for _, n := range []model.Notification{
		{Message: "a", Type: model.NotificationInfo, UserID: "u1"},
		{Message: "b", Type: model.NotificationInfo, UserID: "u2"},
		{Message: "c", Type: model.NotificationError, UserID: "u1", IsRead: true},
	} {
		n := n
		require.NoError(t, notes.Insert(ctx, &n))
	}

	list, err := notes.List(ctx, Query{Filters: []Filter{Eq("user_id", "u1")}, OrderBy: "created_at", Desc: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Message)

	n, err := notes.UpdateWhere(ctx, []Filter{Eq("user_id", "u1"), Eq("is_read", false)}, map[string]any{"is_read": true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = notes.UpdateWhere(ctx, nil, map[string]any{"is_read": true})
	assert.Error(t, err)
}

func TestEventsOrderByDate(t *testing.T) {
	ctx := context.Background()
	events := NewTable[model.Event](storetest.Open(t), "events", nil)

	for _, d := range []model.Date{"2026-06-01", "2026-02-01", "2026-04-01"} {
		e := model.Event{Title: string(d), EventDate: d}
		require.NoError(t, events.Insert(ctx, &e))
	}

	list, err := events.List(ctx, Query{OrderBy: "event_date"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, model.Date("2026-02-01"), list[0].EventDate)
	assert.Equal(t, model.Date("2026-06-01"), list[2].EventDate)
}

func TestSubscribePartitioned(t *testing.T) {
	ctx := context.Background()
	feed := NewMemoryFeed()
	notes := NewTable[model.Notification](storetest.Open(t), "notifications", feed,
		PartitionBy("user_id", func(n *model.Notification) string { return n.UserID }))

	got := make(chan model.Notification, 4)
	sub, err := notes.Subscribe(ctx, Eq("user_id", "u1"), func(n model.Notification) { got <- n })
	require.NoError(t, err)

	require.NoError(t, notes.Insert(ctx, &model.Notification{Message: "other", Type: model.NotificationInfo, UserID: "u2"}))
	require.NoError(t, notes.Insert(ctx, &model.Notification{Message: "mine", Type: model.NotificationInfo, UserID: "u1"}))

	select {
	case n := <-got:
		assert.Equal(t, "mine", n.Message)
		assert.NotEmpty(t, n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no insert delivered")
	}

	require.NoError(t, sub.Close())
	assert.Zero(t, feed.Subscribers("notifications:user_id=u1"))

	_, err = notes.Subscribe(ctx, Eq("message", "x"), func(model.Notification) {})
	assert.ErrorIs(t, err, ErrNotPartitioned)
}

func TestSubscribeWithoutFeed(t *testing.T) {
	members := NewTable[model.Member](storetest.Open(t), "members", nil)
	_, err := members.Subscribe(context.Background(), Filter{}, func(model.Member) {})
	assert.ErrorIs(t, err, ErrNoFeed)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestDeletePropagatesStoreError(t *testing.T) {
	db, mock := setupMockDB(t)
	events := NewTable[model.Event](db, "events", nil)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "events"`)).
		WillReturnError(errors.New("permission denied for table events"))

	err := events.Delete(context.Background(), "e1")
	assert.ErrorContains(t, err, "permission denied")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPropagatesStoreError(t *testing.T) {
	db, mock := setupMockDB(t)
	members := NewTable[model.Member](db, "members", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "members" ORDER BY "created_at" DESC`)).
		WillReturnError(errors.New("connection reset"))

	_, err := members.List(context.Background(), Query{OrderBy: "created_at", Desc: true})
	assert.ErrorContains(t, err, "list members")
	assert.NoError(t, mock.ExpectationsWereMet())
}
