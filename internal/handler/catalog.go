package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
)

// CatalogHandler pushes members and events to the data catalog mirror.
// catalog may be nil when the mirror is not configured.
type CatalogHandler struct {
	catalog *service.CatalogSync
	members *resource.Members
	events  *resource.Events
}

func NewCatalogHandler(catalog *service.CatalogSync, members *resource.Members, events *resource.Events) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, members: members, events: events}
}

// POST /api/catalog/sync
func (h *CatalogHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()
	if err := errors.Join(h.members.List(ctx), h.events.List(ctx)); err != nil {
		fail(c, err)
		return
	}
	res, err := h.catalog.Sync(ctx, h.members.Items(), h.events.Items())
	if err != nil {
		logger.Warn("catalog.sync.failed", "err", err)
		fail(c, err)
		return
	}
	logger.Info("catalog.sync.done", "members", res.Members, "events", res.Events, "by", c.GetString("user_id"))
	c.JSON(http.StatusOK, res)
}
