// Package asset stores uploaded images in named buckets on local disk and
// resolves their public URLs.
package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrExists        = errors.New("object already exists")
	ErrNotFound      = errors.New("object not found")
	ErrInvalidPath   = errors.New("invalid object path")
	ErrNotStorageURL = errors.New("not a storage url")
)

// PublicPrefix is the URL path under which objects are served.
const PublicPrefix = "/storage/v1/object/public/"

type Options struct {
	CacheControl string
	ContentType  string
	// Upsert replaces an existing object instead of failing with ErrExists.
	Upsert bool
}

// Meta is what Open reports about a stored object.
type Meta struct {
	CacheControl string `json:"cacheControl"`
	ContentType  string `json:"contentType,omitempty"`
}

type Disk struct {
	root         string
	baseURL      string
	cacheControl string
}

func NewDisk(root, publicBaseURL, defaultCacheControl string) *Disk {
	if defaultCacheControl == "" {
		defaultCacheControl = "3600"
	}
	return &Disk{root: root, baseURL: strings.TrimRight(publicBaseURL, "/"), cacheControl: defaultCacheControl}
}

func (d *Disk) Upload(ctx context.Context, bucket, name string, r io.Reader, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := d.objectPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if opts.Upsert {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(file, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(file)
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(file)
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}

	meta := Meta{CacheControl: opts.CacheControl, ContentType: opts.ContentType}
	if meta.CacheControl == "" {
		meta.CacheControl = d.cacheControl
	}
	return d.writeMeta(bucket, name, meta)
}

func (d *Disk) PublicURL(bucket, name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return d.baseURL + PublicPrefix + url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}

// Remove deletes the named objects; missing objects are not an error.
func (d *Disk) Remove(ctx context.Context, bucket string, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		file, err := d.objectPath(bucket, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s/%s: %w", bucket, name, err))
			continue
		}
		if meta, err := d.metaPath(bucket, name); err == nil {
			os.Remove(meta)
		}
	}
	return errors.Join(errs...)
}

// Open returns the object for reading together with its stored metadata.
func (d *Disk) Open(bucket, name string) (*os.File, Meta, error) {
	meta := Meta{CacheControl: d.cacheControl}
	file, err := d.objectPath(bucket, name)
	if err != nil {
		return nil, meta, err
	}
	f, err := os.Open(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, meta, fmt.Errorf("open %s/%s: %w", bucket, name, ErrNotFound)
	}
	if err != nil {
		return nil, meta, fmt.Errorf("open %s/%s: %w", bucket, name, err)
	}
	if mp, err := d.metaPath(bucket, name); err == nil {
		if data, err := os.ReadFile(mp); err == nil {
			json.Unmarshal(data, &meta)
		}
	}
	return f, meta, nil
}

func (d *Disk) objectPath(bucket, name string) (string, error) {
	return safeJoin(d.root, bucket, name)
}

// metadata lives beside the buckets so listing a bucket never shows it
func (d *Disk) metaPath(bucket, name string) (string, error) {
	p, err := safeJoin(filepath.Join(d.root, ".meta"), bucket, name)
	if err != nil {
		return "", err
	}
	return p + ".json", nil
}

func (d *Disk) writeMeta(bucket, name string, meta Meta) error {
	mp, err := d.metaPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mp), 0o755); err != nil {
		return fmt.Errorf("write meta %s/%s: %w", bucket, name, err)
	}
	data, _ := json.Marshal(meta)
	return os.WriteFile(mp, data, 0o644)
}

func safeJoin(root, bucket, name string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." || strings.HasPrefix(bucket, ".") {
		return "", fmt.Errorf("bucket %q: %w", bucket, ErrInvalidPath)
	}
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, `\`) {
		return "", fmt.Errorf("object %q: %w", name, ErrInvalidPath)
	}
	return filepath.Join(root, bucket, filepath.FromSlash(clean[1:])), nil
}

// ObjectName builds a fresh random object name under folder, keeping the
// extension of the uploaded file name.
func ObjectName(folder, filename string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// PathFromURL recovers the object path inside bucket from a public URL: the
// path segments after the first segment equal to bucket.
func PathFromURL(raw, bucket string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotStorageURL, err)
	}
	segs := strings.Split(u.Path, "/")
	for i, s := range segs {
		if s != bucket {
			continue
		}
		rest := strings.Join(segs[i+1:], "/")
		if rest == "" {
			break
		}
		return rest, nil
	}
	return "", fmt.Errorf("%w: %q has no object in bucket %s", ErrNotStorageURL, raw, bucket)
}
