package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/service"
)

type DashboardHandler struct{ dashboard *service.DashboardService }

func NewDashboardHandler(d *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: d}
}

// GET /api/dashboard
func (h *DashboardHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Stats(c.Request.Context()))
}
