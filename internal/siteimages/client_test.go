package siteimages

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientGetSendsCacheBusterAndNormalizes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/php/api/site_images.php", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, record(3, "about_gallery_vertical_left_1", "/uploads/about/v1.jpg"))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL+"/php/api/", WithHTTPClient(ts.Client()), WithOrigin("https://example.com"), WithClientClock(clock.Now))
	require.NoError(t, err)

	img, err := c.Get(context.Background(), "about_gallery_vertical_left_1")
	require.NoError(t, err)
	require.Equal(t, "_t=1740830400000&section_key=about_gallery_vertical_left_1", gotQuery)
	require.Equal(t, "https://example.com/uploads/about/v1.jpg", img.ImagePath)
	require.Equal(t, int64(3), img.ID)
	require.NotNil(t, img.Width)
	require.Equal(t, 1920, *img.Width)
	require.Nil(t, img.AltText)
}

func TestClientOriginDefaultsToBaseURL(t *testing.T) {
	t.Parallel()

	c, err := NewClient("https://www.example.org/php/api")
	require.NoError(t, err)
	require.Equal(t, "https://www.example.org", c.Origin())

	_, err = NewClient("  ")
	require.Error(t, err)
}

func TestClientGetNotFound(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	_, err := api.client(t).Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, KindNotFound, Kind(err))
	require.Equal(t, "Image not found", UserMessage(err))
}

func TestClientAcceptsNumericStrings(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"7","section_key":"brand_uryu_hero","image_path":"https://cdn.example.com/u.jpg","width":"1200","height":null,"alt_text":"URYU","created_at":"2025-01-01","updated_at":"2025-01-02"}`)
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	img, err := c.Get(context.Background(), "brand_uryu_hero")
	require.NoError(t, err)
	require.Equal(t, int64(7), img.ID)
	require.Equal(t, 1200, *img.Width)
	require.Nil(t, img.Height)
	require.Equal(t, "URYU", img.Alt())
}

func TestClientRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":        `<html>fatal error</html>`,
		"missing key":     `{"id":1,"image_path":"/a.jpg"}`,
		"missing path":    `{"id":1,"section_key":"k"}`,
		"zero id":         `{"id":0,"section_key":"k","image_path":"/a.jpg"}`,
		"bad number":      `{"id":"abc","section_key":"k","image_path":"/a.jpg"}`,
		"negative width":  `{"id":1,"section_key":"k","image_path":"/a.jpg","width":-5}`,
		"null envelope":   `{"image":null}`,
		"array not value": `[1,2,3]`,
	}
	for name, body := range bodies {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			t.Cleanup(ts.Close)
			c, err := NewClient(ts.URL, WithHTTPClient(ts.Client()))
			require.NoError(t, err)

			_, err = c.Get(context.Background(), "k")
			require.ErrorIs(t, err, ErrMalformedResponse)
			require.Equal(t, KindMalformed, Kind(err))
			require.Equal(t, genericMessage, UserMessage(err))
		})
	}
}

func TestClientListRejectsOneBadRecord(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t,
		record(1, "home_hero_1", "/uploads/h1.jpg"),
		map[string]any{"id": 2, "image_path": "/uploads/x.jpg"},
	)
	_, err := api.client(t).List(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClientListPrefix(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t,
		record(1, "brand_uryu_hero", "/uploads/uh.jpg"),
		record(2, "brand_uryu_showcase", "https://cdn.example.com/us.jpg"),
		record(3, "brand_yokota_hero", "/uploads/yh.jpg"),
	)
	images, err := api.client(t, WithOrigin("https://example.com")).ListPrefix(context.Background(), "brand_uryu")
	require.NoError(t, err)
	require.Len(t, images, 2)
	require.Equal(t, "https://example.com/uploads/uh.jpg", images[0].ImagePath)
	require.Equal(t, "https://cdn.example.com/us.jpg", images[1].ImagePath)
	require.Equal(t, 1, api.count("GET prefix=brand_uryu"))
}

func TestClientUpdateSurfacesBackendMessage(t *testing.T) {
	t.Parallel()

	var body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "alt_text is too long"})
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	_, err = c.Update(context.Background(), "home_hero_1", UpdateFields{AltText: strPtr("x")})
	require.Error(t, err)
	require.JSONEq(t, `{"section_key":"home_hero_1","alt_text":"x"}`, body)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, "alt_text is too long", apiErr.Message)
	require.Equal(t, KindValidation, Kind(err))
	require.Equal(t, "alt_text is too long", UserMessage(err))
}

func TestClientUpdateGenericMessage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<b>Fatal error</b>")
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	_, err = c.Update(context.Background(), "k", UpdateFields{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "request failed with status 500", apiErr.Message)
}

func TestClientUploadMultipart(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/php/api/upload_site_image.php", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "home_hero_2", r.FormValue("section_key"))
		require.Equal(t, "Workshop", r.FormValue("alt_text"))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "hero.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		require.Equal(t, "PNGDATA", string(data))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"image":   record(9, "home_hero_2", "/uploads/site/hero.png"),
		})
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL+"/php/api", WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	img, err := c.Upload(context.Background(), UploadRequest{
		SectionKey: "home_hero_2",
		Filename:   "/tmp/hero.png",
		Content:    strings.NewReader("PNGDATA"),
		AltText:    strPtr("Workshop"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(9), img.ID)
	require.Equal(t, ts.URL+"/uploads/site/hero.png", img.ImagePath)
}

func TestClientNetworkError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := ts.URL
	ts.Close()

	c, err := NewClient(base, WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	err = c.Delete(context.Background(), "k")
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	require.Equal(t, "delete", netErr.Op)
	require.Equal(t, KindNetwork, Kind(err))
	require.Equal(t, genericMessage, UserMessage(err))
}

func TestClientRequiresKey(t *testing.T) {
	t.Parallel()

	c, err := NewClient("https://example.com/php/api")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyKey)
	require.ErrorIs(t, c.Delete(context.Background(), ""), ErrEmptyKey)
	_, err = c.Upload(context.Background(), UploadRequest{SectionKey: "k"})
	require.Error(t, err)
}
