package siteimages

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Collection holds the full image list for admin views and performs mutations,
// writing every successful result through to the shared Cache. Errors are
// returned to the caller; nothing is retried and nothing is applied optimistically.
type Collection struct {
	backend Backend
	cache   *Cache
	logger  *zap.Logger

	mu    sync.RWMutex
	items []Image
}

// NewCollection wires a collection to backend and cache.
func NewCollection(backend Backend, cache *Cache, opts ...Option) *Collection {
	if cache == nil {
		cache = NewCache()
	}
	o := applyOptions(opts)
	return &Collection{backend: backend, cache: cache, logger: o.logger}
}

// Items returns a copy of the local list.
func (c *Collection) Items() []Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Image, len(c.items))
	for i, img := range c.items {
		out[i] = cloneImage(img)
	}
	return out
}

// Find returns the local copy of key.
func (c *Collection) Find(key string) (Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.items, key); i >= 0 {
		return cloneImage(c.items[i]), true
	}
	return Image{}, false
}

// FetchAll loads the whole collection, replacing the local list. All records are
// cached with the same timestamp so the batch expires together.
func (c *Collection) FetchAll(ctx context.Context) ([]Image, error) {
	ctx, span := startSpan(ctx, "siteimages.FetchAll")
	defer span.End()

	images, err := c.backend.List(ctx)
	if err != nil {
		recordFailure(ctx, span, "list", err)
		return nil, fmt.Errorf("siteimages: fetch all: %w", err)
	}
	now := c.cache.Now()
	for _, img := range images {
		c.cache.Set(img.SectionKey, img, now)
	}
	c.mu.Lock()
	c.items = make([]Image, len(images))
	for i, img := range images {
		c.items[i] = cloneImage(img)
	}
	c.mu.Unlock()
	c.logger.Info("site images loaded", zap.Int("count", len(images)))
	return c.Items(), nil
}

// Update changes metadata for key.
func (c *Collection) Update(ctx context.Context, key string, fields UpdateFields) (Image, error) {
	key = strings.TrimSpace(key)
	ctx, span := startSpan(ctx, "siteimages.Update", attribute.String("section_key", key))
	defer span.End()

	img, err := c.backend.Update(ctx, key, fields)
	if err != nil {
		recordFailure(ctx, span, "update", err)
		return Image{}, err
	}
	c.store(img)
	c.logger.Info("site image updated", zap.String("section_key", img.SectionKey))
	return img, nil
}

// Delete removes key from the backend, then from the cache and the local list.
func (c *Collection) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	ctx, span := startSpan(ctx, "siteimages.Delete", attribute.String("section_key", key))
	defer span.End()

	if err := c.backend.Delete(ctx, key); err != nil {
		recordFailure(ctx, span, "delete", err)
		return err
	}
	c.cache.Delete(key)
	c.mu.Lock()
	if i := indexOf(c.items, key); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	c.mu.Unlock()
	c.logger.Info("site image deleted", zap.String("section_key", key))
	return nil
}

// Upload stores a new file for req.SectionKey, replacing the local entry or appending one.
func (c *Collection) Upload(ctx context.Context, req UploadRequest) (Image, error) {
	ctx, span := startSpan(ctx, "siteimages.Upload", attribute.String("section_key", req.SectionKey))
	defer span.End()

	img, err := c.backend.Upload(ctx, req)
	if err != nil {
		recordFailure(ctx, span, "upload", err)
		return Image{}, err
	}
	c.store(img)
	c.logger.Info("site image uploaded", zap.String("section_key", img.SectionKey))
	return img, nil
}

func (c *Collection) store(img Image) {
	c.cache.Set(img.SectionKey, img, c.cache.Now())
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.items, img.SectionKey); i >= 0 {
		c.items[i] = cloneImage(img)
		return
	}
	c.items = append(c.items, cloneImage(img))
}

func indexOf(items []Image, key string) int {
	for i := range items {
		if items[i].SectionKey == key {
			return i
		}
	}
	return -1
}
