package siteimages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAPI mimics site_images.php / upload_site_image.php backed by an ordered record list.
type fakeAPI struct {
	t *testing.T

	mu      sync.Mutex
	records []map[string]any
	nextID  int
	calls   []string
	failAll int

	server *httptest.Server
}

func newFakeAPI(t *testing.T, records ...map[string]any) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, records: records, nextID: 100}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) baseURL() string { return a.server.URL + DefaultBasePath }

func (a *fakeAPI) client(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithHTTPClient(a.server.Client())}, opts...)
	c, err := NewClient(a.baseURL(), opts...)
	require.NoError(t, err)
	return c
}

func (a *fakeAPI) setFailure(status int) {
	a.mu.Lock()
	a.failAll = status
	a.mu.Unlock()
}

// count returns the number of recorded calls starting with prefix, e.g. "GET section_key=x".
func (a *fakeAPI) count(prefix string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q := r.URL.Query()
	call := r.Method
	switch {
	case q.Get("section_key") != "":
		call += " section_key=" + q.Get("section_key")
	case q.Get("prefix") != "":
		call += " prefix=" + q.Get("prefix")
	}
	a.calls = append(a.calls, call)

	if a.failAll != 0 {
		writeJSON(w, a.failAll, map[string]any{"error": "backend unavailable"})
		return
	}

	switch {
	case r.URL.Path == DefaultBasePath+"/upload_site_image.php" && r.Method == http.MethodPost:
		a.upload(w, r)
	case r.URL.Path != DefaultBasePath+"/site_images.php":
		http.NotFound(w, r)
	case r.Method == http.MethodGet && q.Get("section_key") != "":
		if rec := a.find(q.Get("section_key")); rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Image not found"})
	case r.Method == http.MethodGet && q.Get("prefix") != "":
		out := []map[string]any{}
		for _, rec := range a.records {
			if strings.HasPrefix(rec["section_key"].(string), q.Get("prefix")) {
				out = append(out, rec)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, a.records)
	case r.Method == http.MethodPut:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		key, _ := body["section_key"].(string)
		rec := a.find(key)
		if rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Unknown section key"})
			return
		}
		for k, v := range body {
			rec[k] = v
		}
		rec["updated_at"] = "2025-03-01 10:00:00"
		writeJSON(w, http.StatusOK, rec)
	case r.Method == http.MethodDelete:
		key := q.Get("section_key")
		for i, rec := range a.records {
			if rec["section_key"] == key {
				a.records = append(a.records[:i], a.records[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Image not found"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *fakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	key := r.FormValue("section_key")
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No image uploaded"})
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	rec := a.find(key)
	if rec == nil {
		a.nextID++
		rec = map[string]any{"id": a.nextID, "section_key": key, "created_at": "2025-03-01 09:00:00"}
		a.records = append(a.records, rec)
	}
	rec["image_path"] = "/uploads/site/" + header.Filename
	rec["updated_at"] = "2025-03-01 09:30:00"
	if alt := r.FormValue("alt_text"); alt != "" {
		rec["alt_text"] = alt
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "image": rec})
}

func (a *fakeAPI) find(key string) map[string]any {
	for _, rec := range a.records {
		if rec["section_key"] == key {
			return rec
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func record(id int, key, path string) map[string]any {
	return map[string]any{
		"id":          id,
		"section_key": key,
		"image_path":  path,
		"width":       1920,
		"height":      1080,
		"alt_text":    nil,
		"created_at":  "2025-01-01 00:00:00",
		"updated_at":  "2025-01-01 00:00:00",
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubBackend lets tests control Get timing per key.
type stubBackend struct {
	mu    sync.Mutex
	gets  map[string]int
	gates map[string]chan struct{}
	err   error
}

func newStubBackend() *stubBackend {
	return &stubBackend{gets: map[string]int{}, gates: map[string]chan struct{}{}}
}

// gate makes Get(key) block until the returned func is called.
func (s *stubBackend) gate(key string) func() {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[key] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (s *stubBackend) getCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

func (s *stubBackend) Get(ctx context.Context, key string) (Image, error) {
	s.mu.Lock()
	s.gets[key]++
	ch := s.gates[key]
	err := s.err
	s.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return Image{}, ctx.Err()
		}
	}
	if err != nil {
		return Image{}, err
	}
	return Image{ID: 1, SectionKey: key, ImagePath: "https://cdn.example.com/" + key + ".jpg"}, nil
}

func (s *stubBackend) ListPrefix(context.Context, string) ([]Image, error) { return nil, nil }
func (s *stubBackend) List(context.Context) ([]Image, error)               { return nil, nil }
func (s *stubBackend) Update(_ context.Context, key string, f UpdateFields) (Image, error) {
	return Image{ID: 1, SectionKey: key, ImagePath: "https://cdn.example.com/" + key + ".jpg", AltText: f.AltText}, nil
}
func (s *stubBackend) Delete(context.Context, string) error { return nil }
func (s *stubBackend) Upload(context.Context, UploadRequest) (Image, error) {
	return Image{}, fmt.Errorf("not implemented")
}

func strPtr(s string) *string { return &s }
