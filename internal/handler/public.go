package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
)

// PublicHandler serves the unauthenticated site from the cached
// collections, plus stored files.
type PublicHandler struct {
	members *resource.Members
	events  *resource.Events
	disk    *asset.Disk
	now     func() time.Time
}

func NewPublicHandler(members *resource.Members, events *resource.Events, disk *asset.Disk) *PublicHandler {
	return &PublicHandler{members: members, events: events, disk: disk, now: time.Now}
}

func (h *PublicHandler) ready(c *gin.Context) bool {
	ctx := c.Request.Context()
	if err := errors.Join(loaded(ctx, h.members.Hook), loaded(ctx, h.events.Hook)); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// GET /api/public/home
func (h *PublicHandler) Home(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	members := h.members.Items()
	c.JSON(http.StatusOK, gin.H{
		"featuredEvents": resource.Featured(h.events.Items(), model.DateOf(h.now()), 3),
		"keyMembers":     append([]model.Member{}, members[:min(4, len(members))]...),
	})
}

// GET /api/public/members?q=
func (h *PublicHandler) Members(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, resource.SearchMembers(h.members.Items(), c.Query("q")))
}

// GET /api/public/events?q=
func (h *PublicHandler) Events(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	upcoming, past := resource.SplitByDate(resource.SearchEvents(h.events.Items(), c.Query("q")), model.DateOf(h.now()))
	c.JSON(http.StatusOK, gin.H{"upcoming": upcoming, "past": past})
}

// GET /storage/v1/object/public/:bucket/*path
func (h *PublicHandler) Object(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("path"), "/")
	f, meta, err := h.disk.Open(c.Param("bucket"), name)
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "max-age="+meta.CacheControl)
	if meta.ContentType != "" {
		c.Header("Content-Type", meta.ContentType)
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
