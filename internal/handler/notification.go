package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/middleware"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
)

type NotificationHandler struct{ mailboxes *resource.Mailboxes }

func NewNotificationHandler(mailboxes *resource.Mailboxes) *NotificationHandler {
	return &NotificationHandler{mailboxes: mailboxes}
}

type mailboxView struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

func view(box *resource.Mailbox) mailboxView {
	items := box.Notifications()
	if items == nil {
		items = []model.Notification{}
	}
	return mailboxView{Notifications: items, UnreadCount: box.UnreadCount()}
}

// session ties a mailbox to the request's token, so the mailbox is closed
// when the token expires.
func session(c *gin.Context) resource.Session {
	var s resource.Session
	if claims := middleware.Claims(c); claims != nil {
		s.ID = claims.ID
		if claims.ExpiresAt != nil {
			s.Expires = claims.ExpiresAt.Time
		}
	}
	return s
}

func (h *NotificationHandler) mailbox(c *gin.Context) (*resource.Mailbox, bool) {
	box, err := h.mailboxes.For(c.Request.Context(), c.GetString(middleware.KeyUserID), session(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return box, true
}

// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	box, ok := h.mailbox(c)
	if !ok {
		return
	}
	box.List(c.Request.Context())
	if err := box.Err(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(box))
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) Read(c *gin.Context) {
	box, ok := h.mailbox(c)
	if !ok {
		return
	}
	box.MarkAsRead(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, view(box))
}

// POST /api/notifications/read-all
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	box, ok := h.mailbox(c)
	if !ok {
		return
	}
	box.MarkAllAsRead(c.Request.Context())
	c.JSON(http.StatusOK, view(box))
}

// GET /api/notifications/stream  SSE: one "mailbox" event, then a
// "notification" event per live insert.
func (h *NotificationHandler) Stream(c *gin.Context) {
	box, ok := h.mailbox(c)
	if !ok {
		return
	}
	live, cancel := box.Watch()
	defer cancel()

	sse := newSSE(c)
	sse.event("mailbox", view(box))
	pump(c, sse, "notification", live, func(n model.Notification) any {
		return gin.H{"notification": n, "unreadCount": box.UnreadCount()}
	})
}
