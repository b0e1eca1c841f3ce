package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
)

type MemberHandler struct{ members *resource.Members }

func NewMemberHandler(members *resource.Members) *MemberHandler {
	return &MemberHandler{members: members}
}

// GET /api/members?q=
func (h *MemberHandler) List(c *gin.Context) {
	if err := loaded(c.Request.Context(), h.members.Hook); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resource.SearchMembers(h.members.Items(), c.Query("q")))
}

// POST /api/members/refresh
func (h *MemberHandler) Refresh(c *gin.Context) {
	if err := h.members.List(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.members.Items())
}

// POST /api/members  multipart (file = photo) or JSON
func (h *MemberHandler) Create(c *gin.Context) {
	var f model.MemberFields
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and designation are required"})
		return
	}
	photo, closer, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closer.Close()

	m, err := h.members.Create(c.Request.Context(), f, photo)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Info("member.created", "id", m.ID, "by", c.GetString("user_id"))
	c.JSON(http.StatusCreated, m)
}

// PUT /api/members/:id
func (h *MemberHandler) Update(c *gin.Context) {
	p, err := memberPatch(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	photo, closer, err := formUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closer.Close()

	m, err := h.members.Update(c.Request.Context(), c.Param("id"), p, photo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DELETE /api/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	if err := h.members.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	logger.Info("member.deleted", "id", c.Param("id"), "by", c.GetString("user_id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// loaded fetches a collection that has never been listed.
func loaded[T any](ctx context.Context, h *resource.Hook[T]) error {
	if !h.Loading() {
		return nil
	}
	return h.List(ctx)
}
