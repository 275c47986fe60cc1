package siteimages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"
)

const (
	// DefaultBasePath is where the PHP API lives relative to the site origin.
	DefaultBasePath = "/php/api"

	imagesEndpoint = "site_images.php"
	uploadEndpoint = "upload_site_image.php"
	maxErrorBody   = 1 << 16
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Backend is the PHP site image API as seen by resolvers and the collection.
type Backend interface {
	Get(ctx context.Context, key string) (Image, error)
	ListPrefix(ctx context.Context, prefix string) ([]Image, error)
	List(ctx context.Context) ([]Image, error)
	Update(ctx context.Context, key string, fields UpdateFields) (Image, error)
	Delete(ctx context.Context, key string) error
	Upload(ctx context.Context, req UploadRequest) (Image, error)
}

// UpdateFields lists the mutable image attributes. Nil fields are left untouched.
type UpdateFields struct {
	AltText   *string `json:"alt_text,omitempty"`
	Width     *int    `json:"width,omitempty"`
	Height    *int    `json:"height,omitempty"`
	ImagePath *string `json:"image_path,omitempty"`
}

// UploadRequest carries a new or replacement file for a section key.
type UploadRequest struct {
	SectionKey string
	Filename   string
	Content    io.Reader
	AltText    *string
}

// Client talks to the PHP site image endpoints and normalizes every image it
// returns so that ImagePath is absolute.
type Client struct {
	base   *url.URL
	origin string
	http   HTTPClient
	now    func() time.Time
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithOrigin sets the origin used to absolutize relative image paths.
func WithOrigin(origin string) ClientOption {
	return func(c *Client) {
		c.origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
}

// WithClientClock replaces time.Now for the cache-busting query parameter.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a Client for the API rooted at baseURL, e.g.
// "https://www.airtoolpro.com/php/api". The origin defaults to baseURL's origin.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("siteimages: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("siteimages: parse base URL: %w", err)
	}
	c := &Client{
		base: parsed,
		http: &http.Client{Timeout: 10 * time.Second},
		now:  time.Now,
	}
	if parsed.Scheme != "" && parsed.Host != "" {
		c.origin = parsed.Scheme + "://" + parsed.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the origin used for path normalization.
func (c *Client) Origin() string {
	if c.origin == "" {
		return DefaultOrigin
	}
	return c.origin
}

// Get fetches one image. Any non-2xx status is reported as ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (Image, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Image{}, ErrEmptyKey
	}
	q := url.Values{}
	q.Set("section_key", key)
	q.Set("_t", c.stamp())
	resp, err := c.send(ctx, "get", http.MethodGet, c.resolve(imagesEndpoint, q), nil, "")
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		drain(resp.Body)
		return Image{}, fmt.Errorf("%w: %s (status %d)", ErrNotFound, key, resp.StatusCode)
	}
	return c.decodeImage(resp.Body)
}

// ListPrefix fetches every image whose section key starts with prefix.
func (c *Client) ListPrefix(ctx context.Context, prefix string) ([]Image, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, ErrEmptyKey
	}
	q := url.Values{}
	q.Set("prefix", prefix)
	q.Set("_t", c.stamp())
	return c.list(ctx, "list prefix", c.resolve(imagesEndpoint, q))
}

// List fetches the entire collection.
func (c *Client) List(ctx context.Context) ([]Image, error) {
	return c.list(ctx, "list", c.resolve(imagesEndpoint, nil))
}

// Update applies fields to the image stored under key and returns the updated record.
func (c *Client) Update(ctx context.Context, key string, fields UpdateFields) (Image, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Image{}, ErrEmptyKey
	}
	body := struct {
		SectionKey string `json:"section_key"`
		UpdateFields
	}{SectionKey: key, UpdateFields: fields}
	payload, err := json.Marshal(body)
	if err != nil {
		return Image{}, fmt.Errorf("siteimages: encode update: %w", err)
	}
	resp, err := c.send(ctx, "update", http.MethodPut, c.resolve(imagesEndpoint, nil), bytes.NewReader(payload), "application/json")
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return Image{}, errorFromResponse("update", resp)
	}
	return c.decodeImage(resp.Body)
}

// Delete removes the image stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	q := url.Values{}
	q.Set("section_key", key)
	resp, err := c.send(ctx, "delete", http.MethodDelete, c.resolve(imagesEndpoint, q), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return errorFromResponse("delete", resp)
	}
	drain(resp.Body)
	return nil
}

// Upload posts a multipart form with the image file and returns the stored record.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (Image, error) {
	key := strings.TrimSpace(req.SectionKey)
	if key == "" {
		return Image{}, ErrEmptyKey
	}
	if req.Content == nil {
		return Image{}, errors.New("siteimages: upload: missing file content")
	}
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = key
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("section_key", key); err != nil {
		return Image{}, fmt.Errorf("siteimages: upload: %w", err)
	}
	if req.AltText != nil {
		if err := mw.WriteField("alt_text", *req.AltText); err != nil {
			return Image{}, fmt.Errorf("siteimages: upload: %w", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", contentTypeFor(filename))
	part, err := mw.CreatePart(header)
	if err != nil {
		return Image{}, fmt.Errorf("siteimages: upload: %w", err)
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return Image{}, fmt.Errorf("siteimages: upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Image{}, fmt.Errorf("siteimages: upload: %w", err)
	}

	resp, err := c.send(ctx, "upload", http.MethodPost, c.resolve(uploadEndpoint, nil), &buf, mw.FormDataContentType())
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return Image{}, errorFromResponse("upload", resp)
	}
	return c.decodeImage(resp.Body)
}

func (c *Client) list(ctx context.Context, op, endpoint string) ([]Image, error) {
	resp, err := c.send(ctx, op, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return nil, errorFromResponse(op, resp)
	}
	var payloads []imagePayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	out := make([]Image, 0, len(payloads))
	for _, p := range payloads {
		img, err := p.toImage()
		if err != nil {
			return nil, err
		}
		out = append(out, c.normalize(img))
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("siteimages: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return resp, nil
}

// decodeImage accepts both a bare image object and the {"image": {...}} envelope
// returned by the upload endpoint.
func (c *Client) decodeImage(r io.Reader) (Image, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if inner, ok := raw["image"]; ok {
		if _, bare := raw["section_key"]; !bare {
			if err := json.Unmarshal(inner, &raw); err != nil {
				return Image{}, fmt.Errorf("%w: image envelope: %v", ErrMalformedResponse, err)
			}
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var p imagePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	img, err := p.toImage()
	if err != nil {
		return Image{}, err
	}
	return c.normalize(img), nil
}

func (c *Client) normalize(img Image) Image {
	img.ImagePath = NormalizePath(c.Origin(), img.ImagePath)
	return img
}

func (c *Client) resolve(endpoint string, q url.Values) string {
	u := c.base.JoinPath(endpoint)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) stamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

func errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil {
			msg = strings.TrimSpace(firstNonEmpty(payload.Error, payload.Message))
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
