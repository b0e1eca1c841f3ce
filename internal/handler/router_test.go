package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/store/storetest"
	"github.com/manish-shre/KKMS/internal/toast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router    *gin.Engine
	token     string
	admin     string
	feed      *store.MemoryFeed
	hub       *toast.Hub
	mailboxes *resource.Mailboxes
}

func newServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := storetest.Open(t)
	feed := store.NewMemoryFeed()
	disk := asset.NewDisk(t.TempDir(), "http://kkms.test", "")
	hub := toast.NewHub()
	toasts := toast.Multi{toast.Log{}, hub}

	members := resource.NewMembers(store.NewTable[model.Member](db, "members", nil), disk, toasts)
	events := resource.NewEvents(store.NewTable[model.Event](db, "events", nil), disk, toasts)
	notifications := store.NewTable[model.Notification](db, "notifications", feed,
		store.PartitionBy("user_id", func(n *model.Notification) string { return n.UserID }))
	mailboxes := resource.NewMailboxes(notifications)
	t.Cleanup(mailboxes.Close)

	auth := service.NewAuthService(db, "test-secret", time.Hour*24*7, nil)
	a, err := auth.CreateAdmin(ctx, "admin@kkms.org", "admin-pass", "Admin")
	require.NoError(t, err)

	r := NewRouter(Deps{
		Auth:      auth,
		Profiles:  service.NewProfileService(db, disk, auth, toasts),
		Messages:  service.NewMessageService(db, store.NewTable[model.Message](db, "messages", nil), notifications),
		Dashboard: service.NewDashboardService(members, events),
		Members:   members,
		Events:    events,
		Mailboxes: mailboxes,
		Toasts:    hub,
		Disk:      disk,
	})
	s := &testServer{router: r, admin: a.ID, feed: feed, hub: hub, mailboxes: mailboxes}
	s.token = s.login(t)
	return s
}

func (s *testServer) login(t *testing.T) string {
	req := httptest.NewRequest(http.MethodPost, "/api/login",
		jsonBody(t, gin.H{"email": "admin@kkms.org", "password": "admin-pass"}))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.LoginResponse](t, rec).Token
}

// openStream starts an SSE request against a live server and returns a
// scanner over its body.
func openStream(t *testing.T, srv *httptest.Server, path, token string) *bufio.Scanner {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path+"?access_token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewScanner(resp.Body)
}

// nextEvent returns the name and data of the next SSE event, skipping
// keepalive comments. ok is false once the stream has ended.
func nextEvent(sc *bufio.Scanner) (name, data string, ok bool) {
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		case line == "" && name != "":
			return name, data, true
		}
	}
	return "", "", false
}

func jsonBody(t *testing.T, v any) io.Reader {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func multipartBody(t *testing.T, fields map[string]string, file string) (io.Reader, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != "" {
		fw, err := w.CreateFormFile("file", file)
		require.NoError(t, err)
		fw.Write([]byte("image-bytes"))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newServer(t)
	s.token = ""
	rec := s.do(t, http.MethodPost, "/api/login", jsonBody(t, gin.H{"email": "admin@kkms.org", "password": "nope"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/members", nil, "").Code)
}

func TestMemberLifecycle(t *testing.T) {
	s := newServer(t)

	body, ct := multipartBody(t, map[string]string{"name": "Asha", "designation": "Secretary", "bio": "Founder"}, "asha.png")
	rec := s.do(t, http.MethodPost, "/api/members", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[model.Member](t, rec)
	assert.Contains(t, m.PhotoURL, "http://kkms.test/storage/v1/object/public/members/members/")

	// the stored photo is served back with its cache policy
	path := strings.TrimPrefix(m.PhotoURL, "http://kkms.test")
	photo := s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "image-bytes", photo.Body.String())
	assert.Equal(t, "max-age=3600", photo.Header().Get("Cache-Control"))

	body, ct = multipartBody(t, map[string]string{"designation": "President"}, "")
	rec = s.do(t, http.MethodPut, "/api/members/"+m.ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Member](t, rec)
	assert.Equal(t, "President", updated.Designation)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "Founder", *updated.Bio)

	rec = s.do(t, http.MethodPut, "/api/members/"+m.ID, jsonBody(t, gin.H{"bio": ""}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", *decode[model.Member](t, rec).Bio)

	rec = s.do(t, http.MethodGet, "/api/members?q=pres", nil, "")
	assert.Len(t, decode[[]model.Member](t, rec), 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/members/"+m.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/members/"+m.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, "").Code)
}

func TestMemberCreateValidation(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/api/members", jsonBody(t, gin.H{"name": "x"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsAndPublicPages(t *testing.T) {
	s := newServer(t)
	today := time.Now()
	for _, e := range []gin.H{
		{"title": "Past cleanup", "eventDate": model.DateOf(today.AddDate(0, -1, 0)), "location": "Park"},
		{"title": "AGM", "eventDate": model.DateOf(today.AddDate(0, 2, 0)), "isFeatured": true},
		{"title": "Picnic", "eventDate": model.DateOf(today.AddDate(0, 1, 0)), "location": "Riverside park"},
	} {
		rec := s.do(t, http.MethodPost, "/api/events", jsonBody(t, e), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodPost, "/api/events", jsonBody(t, gin.H{"title": "Bad", "eventDate": "next week"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	all := decode[[]model.Event](t, s.do(t, http.MethodGet, "/api/events", nil, ""))
	require.Len(t, all, 3)
	assert.Equal(t, "Past cleanup", all[0].Title)
	assert.Equal(t, "Picnic", all[1].Title)

	upcoming := decode[[]model.Event](t, s.do(t, http.MethodGet, "/api/events?filter=upcoming", nil, ""))
	assert.Len(t, upcoming, 2)

	s.token = ""
	split := decode[struct {
		Upcoming []model.Event `json:"upcoming"`
		Past     []model.Event `json:"past"`
	}](t, s.do(t, http.MethodGet, "/api/public/events?q=park", nil, ""))
	assert.Len(t, split.Upcoming, 1)
	assert.Len(t, split.Past, 1)

	home := decode[struct {
		Featured []model.Event  `json:"featuredEvents"`
		Members  []model.Member `json:"keyMembers"`
	}](t, s.do(t, http.MethodGet, "/api/public/home", nil, ""))
	assert.Len(t, home.Featured, 2)
	assert.NotNil(t, home.Members)
}

func TestContactNotifiesMailbox(t *testing.T) {
	s := newServer(t)

	list := decode[mailboxView](t, s.do(t, http.MethodGet, "/api/notifications", nil, ""))
	assert.Empty(t, list.Notifications)
	assert.Equal(t, 1, s.feed.Subscribers("notifications:user_id="+s.admin))

	token := s.token
	s.token = ""
	rec := s.do(t, http.MethodPost, "/api/contact", jsonBody(t, gin.H{"name": "Meera", "email": "not-an-email", "message": "hi"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/contact", jsonBody(t, gin.H{"name": "Meera", "email": "meera@example.org", "message": "hi"}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	s.token = token

	require.Eventually(t, func() bool {
		v := decode[mailboxView](t, s.do(t, http.MethodGet, "/api/notifications", nil, ""))
		return v.UnreadCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	v := decode[mailboxView](t, s.do(t, http.MethodGet, "/api/notifications", nil, ""))
	id := v.Notifications[0].ID
	v = decode[mailboxView](t, s.do(t, http.MethodPost, "/api/notifications/"+id+"/read", nil, ""))
	assert.Equal(t, 0, v.UnreadCount)
	v = decode[mailboxView](t, s.do(t, http.MethodPost, "/api/notifications/"+id+"/read", nil, ""))
	assert.Equal(t, 0, v.UnreadCount)

	msgs := decode[[]model.Message](t, s.do(t, http.MethodGet, "/api/messages", nil, ""))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/logout", nil, "").Code)
	assert.Equal(t, 0, s.feed.Subscribers("notifications:user_id="+s.admin))
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/notifications", nil, "").Code)
}

func TestToastStream(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/toasts/stream?access_token="+s.token, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the subscription is registered once headers are out
	go func() {
		for i := 0; i < 50; i++ {
			s.hub.Success("Member added successfully")
			time.Sleep(20 * time.Millisecond)
		}
	}()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			var got toast.Toast
			require.NoError(t, json.Unmarshal([]byte(line[6:]), &got))
			assert.Equal(t, "Member added successfully", got.Message)
			return
		}
	}
	t.Fatal("stream ended without a toast")
}

func TestDashboardAndCatalog(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/api/members", jsonBody(t, gin.H{"name": "Asha", "designation": "Secretary"}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	stats := decode[model.Statistics](t, s.do(t, http.MethodGet, "/api/dashboard", nil, ""))
	assert.Equal(t, 1, stats.TotalMembers)
	assert.Len(t, stats.MemberJoins, 6)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/api/catalog/sync", nil, "").Code)
}

func TestProfileUpdateMultipart(t *testing.T) {
	s := newServer(t)
	body, ct := multipartBody(t, map[string]string{"fullName": "Renamed"}, "me.jpg")
	rec := s.do(t, http.MethodPut, "/api/profile", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[model.Profile](t, rec)
	assert.Equal(t, "Renamed", p.FullName)
	require.NotNil(t, p.AvatarURL)

	body, ct = multipartBody(t, map[string]string{"currentPassword": "admin-pass", "newPassword": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/profile", body, ct).Code)

	rec = s.do(t, http.MethodPut, "/api/password", jsonBody(t, gin.H{"currentPassword": "wrong", "newPassword": "long-enough"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, "").Code)
	rec := s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kkms_sync_operations_total")
}

func TestNotificationStream(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	sc := openStream(t, srv, "/api/notifications/stream", s.token)
	name, data, ok := nextEvent(sc)
	require.True(t, ok)
	assert.Equal(t, "mailbox", name)
	var first mailboxView
	require.NoError(t, json.Unmarshal([]byte(data), &first))
	assert.Equal(t, 0, first.UnreadCount)

	token := s.token
	s.token = ""
	rec := s.do(t, http.MethodPost, "/api/contact", jsonBody(t, gin.H{"name": "Meera", "email": "meera@example.org", "message": "hi"}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	s.token = token

	name, data, ok = nextEvent(sc)
	require.True(t, ok)
	assert.Equal(t, "notification", name)
	var live struct {
		Notification model.Notification `json:"notification"`
		UnreadCount  int                `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &live))
	assert.Equal(t, "New message from Meera", live.Notification.Message)
	assert.Equal(t, s.admin, live.Notification.UserID)
	assert.Equal(t, 1, live.UnreadCount)
}

func TestLogoutKeepsOtherSessionStream(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	channel := "notifications:user_id=" + s.admin

	phone := s.login(t)
	sc := openStream(t, srv, "/api/notifications/stream", phone)
	_, _, ok := nextEvent(sc)
	require.True(t, ok)

	// the laptop session signs out; the phone keeps its stream
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/notifications", nil, "").Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/logout", nil, "").Code)
	assert.Equal(t, 1, s.feed.Subscribers(channel))

	s.token = phone
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/logout", nil, "").Code)
	assert.Equal(t, 0, s.feed.Subscribers(channel))
	_, _, ok = nextEvent(sc)
	assert.False(t, ok)
}

func TestStreamsEndWhenSubscriptionsClose(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	notes := openStream(t, srv, "/api/notifications/stream", s.token)
	_, _, ok := nextEvent(notes)
	require.True(t, ok)
	toasts := openStream(t, srv, "/api/toasts/stream", s.token)

	s.mailboxes.Close()
	s.hub.Close()

	done := make(chan struct{})
	go func() {
		nextEvent(notes)
		nextEvent(toasts)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("streams still open after close")
	}
}
