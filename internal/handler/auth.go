package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/middleware"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
)

type AuthHandler struct {
	auth      *service.AuthService
	mailboxes *resource.Mailboxes
}

func NewAuthHandler(auth *service.AuthService, mailboxes *resource.Mailboxes) *AuthHandler {
	return &AuthHandler{auth: auth, mailboxes: mailboxes}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	u, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		logger.Warn("login.failed", "email", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error("login.error", "email", req.Email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := h.auth.Issue(u.ID, u.FullName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	logger.Info("login.ok", "uid", u.ID, "name", u.FullName)
	c.JSON(http.StatusOK, model.LoginResponse{Token: token, User: *u})
}

// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.Claims(c)
	if err := h.auth.SignOut(c.Request.Context(), claims); err != nil {
		logger.Error("logout.failed", "uid", claims.UID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	h.mailboxes.Release(claims.UID, claims.ID)
	logger.Info("logout.ok", "uid", claims.UID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PUT /api/password
func (h *AuthHandler) Password(c *gin.Context) {
	var req model.PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password must be at least 8 characters"})
		return
	}
	uid := c.GetString(middleware.KeyUserID)
	if err := h.auth.UpdatePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	logger.Info("password.updated", "uid", uid)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
