package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"finitefield.org/airtools-web/internal/httpx"
	"finitefield.org/airtools-web/internal/observability"
	"finitefield.org/airtools-web/internal/siteimages"
)

const (
	maxUpdateBody  = 16 * 1024
	maxUploadBytes = 10 << 20
)

// ImageResolver is the read side used by public endpoints.
type ImageResolver interface {
	Resolve(ctx context.Context, key string) siteimages.Result
	ResolveFamily(ctx context.Context, prefix, fallbackKey string) siteimages.Family
}

// ImageCollection is the admin side: full listing plus write-through mutations.
type ImageCollection interface {
	FetchAll(ctx context.Context) ([]siteimages.Image, error)
	Update(ctx context.Context, key string, fields siteimages.UpdateFields) (siteimages.Image, error)
	Delete(ctx context.Context, key string) error
	Upload(ctx context.Context, req siteimages.UploadRequest) (siteimages.Image, error)
}

// ImageHandlers exposes the site image layer over HTTP.
type ImageHandlers struct {
	resolver   ImageResolver
	collection ImageCollection
	adminToken string
	validate   *validator.Validate
}

// NewImageHandlers constructs image handlers. Mutation routes are only
// registered when adminToken is non-empty.
func NewImageHandlers(resolver ImageResolver, collection ImageCollection, adminToken string) *ImageHandlers {
	return &ImageHandlers{
		resolver:   resolver,
		collection: collection,
		adminToken: strings.TrimSpace(adminToken),
		validate:   newRequestValidator(),
	}
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes registers the image endpoints on the provided router.
func (h *ImageHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/families/{prefix}", h.family)
	r.Get("/{key}", h.get)

	if h.adminToken == "" {
		return
	}
	r.Group(func(admin chi.Router) {
		admin.Use(requireBearer(h.adminToken))
		admin.Put("/{key}", h.update)
		admin.Delete("/{key}", h.remove)
		admin.Post("/{key}/upload", h.upload)
	})
}

type imageResponse struct {
	Image siteimages.Image `json:"image"`
	URL   string           `json:"url"`
	Stale bool             `json:"stale,omitempty"`
}

type familyResponse struct {
	Prefix   string             `json:"prefix"`
	Images   []siteimages.Image `json:"images"`
	Hero     *siteimages.Image  `json:"hero"`
	Showcase *siteimages.Image  `json:"showcase"`
	Fallback bool               `json:"fallback"`
}

type listResponse struct {
	Images []siteimages.Image `json:"images"`
	Count  int                `json:"count"`
}

func (h *ImageHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.collection == nil {
		httpx.WriteError(ctx, w, httpx.NewError("image_service_unavailable", "image service is unavailable", http.StatusServiceUnavailable))
		return
	}
	images, err := h.collection.FetchAll(ctx)
	if err != nil {
		writeImageError(ctx, w, err)
		return
	}
	if images == nil {
		images = []siteimages.Image{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Images: images, Count: len(images)})
}

func (h *ImageHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := h.resolver.Resolve(ctx, chi.URLParam(r, "key"))
	if res.Image == nil {
		if res.Err == nil {
			res.Err = siteimages.ErrNotFound
		}
		writeImageError(ctx, w, res.Err)
		return
	}
	if res.Stale {
		observability.FromContext(ctx).Warn("serving stale site image",
			zap.String("section_key", res.Key),
			zap.Error(res.Err),
		)
	}
	httpx.WriteJSON(w, http.StatusOK, imageResponse{
		Image: *res.Image,
		URL:   res.Image.VersionedURL(),
		Stale: res.Stale,
	})
}

func (h *ImageHandlers) family(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fam := h.resolver.ResolveFamily(ctx, chi.URLParam(r, "prefix"), r.URL.Query().Get("fallback"))
	if fam.Err != nil && len(fam.Images) == 0 {
		writeImageError(ctx, w, fam.Err)
		return
	}
	images := fam.Images
	if images == nil {
		images = []siteimages.Image{}
	}
	httpx.WriteJSON(w, http.StatusOK, familyResponse{
		Prefix:   fam.Prefix,
		Images:   images,
		Hero:     fam.Hero(),
		Showcase: fam.Showcase(),
		Fallback: fam.Fallback,
	})
}

type updateImageRequest struct {
	AltText   *string `json:"alt_text" validate:"omitempty,max=255"`
	Width     *int    `json:"width" validate:"omitempty,gte=1,lte=20000"`
	Height    *int    `json:"height" validate:"omitempty,gte=1,lte=20000"`
	ImagePath *string `json:"image_path" validate:"omitempty,min=1,max=1024"`
}

func (req updateImageRequest) empty() bool {
	return req.AltText == nil && req.Width == nil && req.Height == nil && req.ImagePath == nil
}

func (h *ImageHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body too large", http.StatusRequestEntityTooLarge))
		return
	}
	var req updateImageRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.empty() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one field is required", http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationMessage(err), http.StatusBadRequest))
		return
	}

	img, err := h.collection.Update(ctx, key, siteimages.UpdateFields{
		AltText:   req.AltText,
		Width:     req.Width,
		Height:    req.Height,
		ImagePath: req.ImagePath,
	})
	if err != nil {
		writeImageError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, imageResponse{Image: img, URL: img.VersionedURL()})
}

func (h *ImageHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.collection.Delete(ctx, chi.URLParam(r, "key")); err != nil {
		writeImageError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImageHandlers) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form with an image file is required", http.StatusBadRequest))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "image file is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil || !strings.HasPrefix(detected.String(), "image/") {
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", "uploaded file is not an image", http.StatusUnsupportedMediaType))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "unable to read upload", http.StatusInternalServerError))
		return
	}

	req := siteimages.UploadRequest{
		SectionKey: key,
		Filename:   uploadFilename(key, header.Filename, detected.Extension()),
		Content:    file,
	}
	if values, ok := r.MultipartForm.Value["alt_text"]; ok && len(values) > 0 {
		alt := values[0]
		req.AltText = &alt
	}

	img, err := h.collection.Upload(ctx, req)
	if err != nil {
		writeImageError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, imageResponse{Image: img, URL: img.VersionedURL()})
}

// uploadFilename keeps the client's base name, or invents a unique one
// from the section key when the client sent none.
func uploadFilename(key, original, ext string) string {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(original, "\\", "/")))
	if name != "" && name != "." && name != "/" {
		return name
	}
	return fmt.Sprintf("%s-%s%s", key, strings.ToLower(ulid.Make().String()), ext)
}

func writeImageError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := observability.FromContext(ctx)
	switch siteimages.Kind(err) {
	case siteimages.KindNotFound:
		httpx.WriteError(ctx, w, httpx.NewError("image_not_found", siteimages.UserMessage(err), http.StatusNotFound))
	case siteimages.KindValidation:
		var apiErr *siteimages.APIError
		_ = errors.As(err, &apiErr)
		status := http.StatusUnprocessableEntity
		switch {
		case apiErr.Status == http.StatusNotFound:
			status = http.StatusNotFound
		case apiErr.Status >= http.StatusInternalServerError:
			status = http.StatusBadGateway
		}
		httpx.WriteError(ctx, w, httpx.NewError("image_request_rejected", siteimages.UserMessage(err), status))
	case siteimages.KindNetwork, siteimages.KindMalformed:
		logger.Error("site image backend failure", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("image_backend_unavailable", siteimages.UserMessage(err), http.StatusBadGateway))
	default:
		if errors.Is(err, siteimages.ErrEmptyKey) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "section key is required", http.StatusBadRequest))
			return
		}
		logger.Error("site image request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
