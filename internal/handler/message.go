package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/service"
)

type MessageHandler struct{ messages *service.MessageService }

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// POST /api/contact
func (h *MessageHandler) Contact(c *gin.Context) {
	var req model.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, a valid email and a message are required"})
		return
	}
	m, err := h.messages.Submit(c.Request.Context(), req)
	if err != nil {
		logger.Error("contact.failed", "email", req.Email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	logger.Info("contact.received", "id", m.ID)
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// GET /api/messages
func (h *MessageHandler) List(c *gin.Context) {
	list, err := h.messages.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []model.Message{}
	}
	c.JSON(http.StatusOK, list)
}
