package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/manish-shre/KKMS/internal/store"
)

const maxUpload = 10 << 20

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formUpload returns the "file" part of a multipart request, or nil. The
// returned closer must be called once the upload has been consumed.
func formUpload(c *gin.Context) (*resource.Upload, io.Closer, error) {
	if !isMultipart(c) {
		return nil, io.NopCloser(nil), nil
	}
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, io.NopCloser(nil), nil
	}
	if err != nil {
		return nil, nil, err
	}
	if fh.Size > maxUpload {
		return nil, nil, errors.New("file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &resource.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, f, nil
}

// formField reports a multipart field only when it was sent, so an absent
// field stays nil and an empty one is written.
func formField(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok {
		return &v
	}
	return nil
}

func formBool(c *gin.Context, key string) (*bool, error) {
	v := formField(c, key)
	if v == nil {
		return nil, nil
	}
	b, err := strconv.ParseBool(*v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func memberPatch(c *gin.Context) (model.MemberPatch, error) {
	var p model.MemberPatch
	if !isMultipart(c) {
		err := c.ShouldBindJSON(&p)
		return p, err
	}
	p.Name = formField(c, "name")
	p.Designation = formField(c, "designation")
	p.PhotoURL = formField(c, "photoUrl")
	p.Bio = formField(c, "bio")
	p.Contact = formField(c, "contact")
	return p, nil
}

func eventPatch(c *gin.Context) (model.EventPatch, error) {
	var p model.EventPatch
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&p); err != nil {
			return p, err
		}
	} else {
		p.Title = formField(c, "title")
		p.Description = formField(c, "description")
		p.Location = formField(c, "location")
		p.ImageURL = formField(c, "imageUrl")
		if v := formField(c, "eventDate"); v != nil {
			d := model.Date(*v)
			p.EventDate = &d
		}
		featured, err := formBool(c, "isFeatured")
		if err != nil {
			return p, err
		}
		p.IsFeatured = featured
	}
	if p.EventDate != nil {
		d, err := model.ParseDate(string(*p.EventDate))
		if err != nil {
			return p, err
		}
		p.EventDate = &d
	}
	return p, nil
}

// status maps service and store errors to HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, asset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, asset.ErrExists):
		return http.StatusConflict
	case errors.Is(err, asset.ErrInvalidPath), errors.Is(err, service.ErrWrongPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCatalogNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}
