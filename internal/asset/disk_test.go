package asset

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadOpenRemove(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(t.TempDir(), "http://localhost:9871/", "")

	require.NoError(t, d.Upload(ctx, "images", "events/a.png", strings.NewReader("png"), Options{ContentType: "image/png"}))

	f, meta, err := d.Open("images", "events/a.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "3600", meta.CacheControl)
	assert.Equal(t, "image/png", meta.ContentType)

	require.NoError(t, d.Remove(ctx, "images", "events/a.png", "events/missing.png"))
	_, _, err = d.Open("images", "events/a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadNoOverwriteByDefault(t *testing.T) {
	ctx := context.Background()
	d := NewDisk(t.TempDir(), "http://localhost", "60")

	require.NoError(t, d.Upload(ctx, "members", "members/x.jpg", strings.NewReader("v1"), Options{}))
	err := d.Upload(ctx, "members", "members/x.jpg", strings.NewReader("v2"), Options{})
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, d.Upload(ctx, "members", "members/x.jpg", strings.NewReader("v3"), Options{Upsert: true, CacheControl: "10"}))
	f, meta, err := d.Open("members", "members/x.jpg")
	require.NoError(t, err)
	defer f.Close()
	data, _ := io.ReadAll(f)
	assert.Equal(t, "v3", string(data))
	assert.Equal(t, "10", meta.CacheControl)
}

func TestRejectsEscapingPaths(t *testing.T) {
	d := NewDisk(t.TempDir(), "http://localhost", "")
	ctx := context.Background()

	assert.ErrorIs(t, d.Upload(ctx, "..", "a.png", strings.NewReader(""), Options{}), ErrInvalidPath)
	assert.ErrorIs(t, d.Upload(ctx, ".meta", "a.png", strings.NewReader(""), Options{}), ErrInvalidPath)
	assert.ErrorIs(t, d.Upload(ctx, "images", "", strings.NewReader(""), Options{}), ErrInvalidPath)

	// cleaned to images/etc/passwd, inside the bucket
	require.NoError(t, d.Upload(ctx, "images", "../../etc/passwd", strings.NewReader("x"), Options{}))
	f, _, err := d.Open("images", "etc/passwd")
	require.NoError(t, err)
	f.Close()
}

func TestPublicURLRoundTrip(t *testing.T) {
	d := NewDisk(t.TempDir(), "https://kkms.example.org", "")

	u := d.PublicURL("members", "members/abc.jpg")
	assert.Equal(t, "https://kkms.example.org/storage/v1/object/public/members/members/abc.jpg", u)

	p, err := PathFromURL(u, "members")
	require.NoError(t, err)
	assert.Equal(t, "members/abc.jpg", p)

	p, err = PathFromURL(d.PublicURL("images", "events/x y.png"), "images")
	require.NoError(t, err)
	assert.Equal(t, "events/x y.png", p)
}

func TestPathFromURLMalformed(t *testing.T) {
	_, err := PathFromURL("://nope", "images")
	assert.ErrorIs(t, err, ErrNotStorageURL)

	_, err = PathFromURL("https://cdn.example.org/other/a.png", "images")
	assert.ErrorIs(t, err, ErrNotStorageURL)

	_, err = PathFromURL("https://cdn.example.org/images/", "images")
	assert.ErrorIs(t, err, ErrNotStorageURL)
}

func TestObjectName(t *testing.T) {
	a := ObjectName("events", "Poster.PNG")
	b := ObjectName("events", "Poster.PNG")

	assert.True(t, strings.HasPrefix(a, "events/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, ObjectName("", "noext"), "/")
}
