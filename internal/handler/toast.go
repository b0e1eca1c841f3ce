package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/toast"
)

type ToastHandler struct{ hub *toast.Hub }

func NewToastHandler(hub *toast.Hub) *ToastHandler { return &ToastHandler{hub: hub} }

// GET /api/toasts/stream
func (h *ToastHandler) Stream(c *gin.Context) {
	ch, cancel := h.hub.Subscribe()
	defer cancel()
	pump(c, newSSE(c), "toast", ch, func(t toast.Toast) any { return t })
}
