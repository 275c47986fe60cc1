package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/airtools-web/internal/seo"
	"finitefield.org/airtools-web/internal/siteimages"
)

const testToken = "admin-secret"

// fakeBackend is an in-memory stand-in for the PHP API.
type fakeBackend struct {
	mu     sync.Mutex
	images map[string]siteimages.Image
	gets   map[string]int
	fail   error
}

func newFakeBackend(images ...siteimages.Image) *fakeBackend {
	b := &fakeBackend{images: map[string]siteimages.Image{}, gets: map[string]int{}}
	for _, img := range images {
		b.images[img.SectionKey] = img
	}
	return b
}

func (b *fakeBackend) getCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets[key]
}

func (b *fakeBackend) Get(_ context.Context, key string) (siteimages.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets[key]++
	if b.fail != nil {
		return siteimages.Image{}, b.fail
	}
	img, ok := b.images[key]
	if !ok {
		return siteimages.Image{}, fmt.Errorf("%w: %s (status 404)", siteimages.ErrNotFound, key)
	}
	return img, nil
}

func (b *fakeBackend) ListPrefix(_ context.Context, prefix string) ([]siteimages.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return nil, b.fail
	}
	return b.sorted(prefix), nil
}

func (b *fakeBackend) List(_ context.Context) ([]siteimages.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return nil, b.fail
	}
	return b.sorted(""), nil
}

func (b *fakeBackend) Update(_ context.Context, key string, fields siteimages.UpdateFields) (siteimages.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	img, ok := b.images[key]
	if !ok {
		return siteimages.Image{}, &siteimages.APIError{Op: "update", Status: http.StatusNotFound, Message: "Unknown section key"}
	}
	if fields.AltText != nil {
		alt := *fields.AltText
		img.AltText = &alt
	}
	if fields.Width != nil {
		w := *fields.Width
		img.Width = &w
	}
	if fields.Height != nil {
		h := *fields.Height
		img.Height = &h
	}
	if fields.ImagePath != nil {
		img.ImagePath = *fields.ImagePath
	}
	img.UpdatedAt = "2025-03-01 10:00:00"
	b.images[key] = img
	return img, nil
}

func (b *fakeBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.images[key]; !ok {
		return &siteimages.APIError{Op: "delete", Status: http.StatusNotFound, Message: "Unknown section key"}
	}
	delete(b.images, key)
	return nil
}

func (b *fakeBackend) Upload(_ context.Context, req siteimages.UploadRequest) (siteimages.Image, error) {
	if _, err := io.Copy(io.Discard, req.Content); err != nil {
		return siteimages.Image{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	img, ok := b.images[req.SectionKey]
	if !ok {
		img = siteimages.Image{ID: int64(len(b.images) + 1), SectionKey: req.SectionKey, CreatedAt: "2025-03-01 10:00:00"}
	}
	img.ImagePath = "https://www.airtoolpro.com/uploads/site/" + req.Filename
	img.AltText = req.AltText
	img.UpdatedAt = "2025-03-01 11:00:00"
	b.images[req.SectionKey] = img
	return img, nil
}

func (b *fakeBackend) sorted(prefix string) []siteimages.Image {
	keys := make([]string, 0, len(b.images))
	for k := range b.images {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]siteimages.Image, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.images[k])
	}
	return out
}

func image(id int64, key, path string) siteimages.Image {
	w, h := 1920, 1080
	alt := "Alt " + key
	return siteimages.Image{
		ID:         id,
		SectionKey: key,
		ImagePath:  path,
		Width:      &w,
		Height:     &h,
		AltText:    &alt,
		CreatedAt:  "2025-01-01 00:00:00",
		UpdatedAt:  "2025-01-02 03:04:05",
	}
}

type testServer struct {
	handler http.Handler
	backend *fakeBackend
	cache   *siteimages.Cache
}

func newTestServer(t *testing.T, token string, images ...siteimages.Image) *testServer {
	t.Helper()
	backend := newFakeBackend(images...)
	cache := siteimages.NewCache()
	resolver := siteimages.NewResolver(backend, cache)
	collection := siteimages.NewCollection(backend, cache)
	builder, err := seo.NewBuilder()
	require.NoError(t, err)

	imageHandlers := NewImageHandlers(resolver, collection, token)
	seoHandlers := NewSEOHandlers(builder, resolver)
	router := NewRouter(
		WithImageRoutes(imageHandlers.Routes),
		WithSEORoutes(seoHandlers.Routes),
		WithPageRoutes(seoHandlers.PageRoutes),
	)
	return &testServer{handler: router, backend: backend, cache: cache}
}
