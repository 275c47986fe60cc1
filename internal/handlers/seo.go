package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/airtools-web/internal/httpx"
	"finitefield.org/airtools-web/internal/observability"
	"finitefield.org/airtools-web/internal/seo"
	"finitefield.org/airtools-web/internal/siteimages"
)

const maxArticleBody = 256 * 1024

// HeadBuilder produces page heads.
type HeadBuilder interface {
	Build(key string, ov *seo.Overrides) (seo.Head, error)
	BuildArticle(post seo.BlogPost) (seo.Head, error)
	Template(key string) (seo.PageTemplate, bool)
}

// SEOHandlers serves head metadata as JSON and as rendered page shells.
type SEOHandlers struct {
	builder  HeadBuilder
	resolver ImageResolver
}

// NewSEOHandlers constructs the handlers. resolver may be nil, in which case
// page shells render without a hero image.
func NewSEOHandlers(builder HeadBuilder, resolver ImageResolver) *SEOHandlers {
	return &SEOHandlers{builder: builder, resolver: resolver}
}

// Routes registers the JSON endpoints under /api/seo.
func (h *SEOHandlers) Routes(r chi.Router) {
	r.Get("/{page}", h.head)
	r.Post("/articles", h.article)
}

// PageRoutes registers the HTML page shells under /pages.
func (h *SEOHandlers) PageRoutes(r chi.Router) {
	r.Get("/{page}", h.page)
}

func (h *SEOHandlers) head(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ov *seo.Overrides
	if q.Has("title") || q.Has("description") || q.Has("path") || q.Has("image") || q.Has("keywords") {
		ov = &seo.Overrides{
			Title:       q.Get("title"),
			Description: q.Get("description"),
			Path:        q.Get("path"),
			Image:       q.Get("image"),
			Keywords:    splitKeywords(q.Get("keywords")),
		}
	}
	head, err := h.builder.Build(chi.URLParam(r, "page"), ov)
	if err != nil {
		writeSEOError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, head)
}

type articleRequest struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	Image       string    `json:"image"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

func (h *SEOHandlers) article(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req articleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxArticleBody)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	head, err := h.builder.BuildArticle(seo.BlogPost{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Image:       req.Image,
		Author:      req.Author,
		Tags:        req.Tags,
		PublishedAt: req.PublishedAt,
		ModifiedAt:  req.ModifiedAt,
	})
	if err != nil {
		if errors.Is(err, seo.ErrUnknownPage) {
			writeSEOError(w, r, err)
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, head)
}

var pageShell = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
{{with .Hero}}<img src="{{.URL}}" alt="{{.Alt}}"{{if .Width}} width="{{.Width}}"{{end}}{{if .Height}} height="{{.Height}}"{{end}} loading="eager">{{else}}<div class="image-placeholder" role="img" aria-label="{{.Placeholder}}"></div>{{end}}
<p>{{.Description}}</p>
</main>
</body>
</html>
`))

type heroView struct {
	URL    string
	Alt    string
	Width  int
	Height int
}

type pageView struct {
	Heading     string
	Description string
	Hero        *heroView
	Placeholder string
}

func (h *SEOHandlers) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "page")
	tmpl, ok := h.builder.Template(key)
	if !ok {
		writeSEOError(w, r, seo.ErrUnknownPage)
		return
	}

	view := pageView{Heading: tmpl.Title, Description: tmpl.Description, Placeholder: "Image not found"}
	var ov *seo.Overrides
	if h.resolver != nil {
		fam := h.resolver.ResolveFamily(ctx, key+"_", key+"_hero")
		if hero := fam.Hero(); hero != nil {
			view.Hero = newHeroView(*hero)
			ov = &seo.Overrides{Image: hero.ImagePath}
		} else if fam.Err != nil {
			view.Placeholder = siteimages.UserMessage(fam.Err)
		}
	}

	head, err := h.builder.Build(key, ov)
	if err != nil {
		writeSEOError(w, r, err)
		return
	}

	var shell bytes.Buffer
	if err := pageShell.Execute(&shell, view); err != nil {
		observability.FromContext(ctx).Error("render page shell", zap.String("page", key), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
		return
	}
	var out bytes.Buffer
	if err := seo.Apply(&out, &shell, head); err != nil {
		observability.FromContext(ctx).Error("apply page head", zap.String("page", key), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = out.WriteTo(w)
}

func newHeroView(img siteimages.Image) *heroView {
	v := &heroView{URL: img.VersionedURL(), Alt: img.Alt()}
	if img.Width != nil {
		v.Width = *img.Width
	}
	if img.Height != nil {
		v.Height = *img.Height
	}
	return v
}

func writeSEOError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, seo.ErrUnknownPage) {
		httpx.WriteError(ctx, w, httpx.NewError("page_not_found", "unknown page "+chi.URLParam(r, "page"), http.StatusNotFound))
		return
	}
	observability.FromContext(ctx).Error("build page head", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}

func splitKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
