package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
)

type EventHandler struct {
	events *resource.Events
	now    func() time.Time
}

func NewEventHandler(events *resource.Events) *EventHandler {
	return &EventHandler{events: events, now: time.Now}
}

// GET /api/events?q=&filter=all|upcoming|past
func (h *EventHandler) List(c *gin.Context) {
	if err := loaded(c.Request.Context(), h.events.Hook); err != nil {
		fail(c, err)
		return
	}
	filter := resource.EventFilter(c.DefaultQuery("filter", string(resource.EventsAll)))
	c.JSON(http.StatusOK, resource.FilterEvents(h.events.Items(), c.Query("q"), filter, model.DateOf(h.now())))
}

// POST /api/events/refresh
func (h *EventHandler) Refresh(c *gin.Context) {
	if err := h.events.List(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.events.Items())
}

// POST /api/events  multipart (file = image) or JSON
func (h *EventHandler) Create(c *gin.Context) {
	var f model.EventFields
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and eventDate are required"})
		return
	}
	date, err := model.ParseDate(string(f.EventDate))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eventDate must be YYYY-MM-DD"})
		return
	}
	f.EventDate = date

	image, closer, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closer.Close()

	e, err := h.events.Create(c.Request.Context(), f, image)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Info("event.created", "id", e.ID, "date", e.EventDate, "by", c.GetString("user_id"))
	c.JSON(http.StatusCreated, e)
}

// PUT /api/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	p, err := eventPatch(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	image, closer, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closer.Close()

	e, err := h.events.Update(c.Request.Context(), c.Param("id"), p, image)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DELETE /api/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	logger.Info("event.deleted", "id", c.Param("id"), "by", c.GetString("user_id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
