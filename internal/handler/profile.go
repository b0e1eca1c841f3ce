package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/middleware"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/service"
)

type ProfileHandler struct{ profiles *service.ProfileService }

func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.GetString(middleware.KeyUserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PUT /api/profile  multipart: fullName, file, currentPassword, newPassword
func (h *ProfileHandler) Update(c *gin.Context) {
	var u service.ProfileUpdate
	if isMultipart(c) {
		u.FullName = formField(c, "fullName")
		current, next := c.PostForm("currentPassword"), c.PostForm("newPassword")
		if current != "" || next != "" {
			u.Password = &model.PasswordChange{CurrentPassword: current, NewPassword: next}
		}
	} else {
		var req struct {
			FullName *string               `json:"fullName"`
			Password *model.PasswordChange `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		u.FullName, u.Password = req.FullName, req.Password
	}
	if u.Password != nil && len(u.Password.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password must be at least 8 characters"})
		return
	}

	avatar, closer, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closer.Close()
	u.Avatar = avatar

	p, err := h.profiles.Update(c.Request.Context(), c.GetString(middleware.KeyUserID), u)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
