package seo

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultRobots = "index, follow"
	twitterCard   = "summary_large_image"
)

// ErrUnknownPage is returned when no template exists for a page key.
var ErrUnknownPage = errors.New("seo: unknown page")

// Builder produces page heads from a catalog.
type Builder struct {
	site   Site
	pages  map[string]PageTemplate
	logger *zap.Logger
}

type builderConfig struct {
	catalog  *Catalog
	siteName string
	domain   string
	logger   *zap.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*builderConfig)

// WithCatalog replaces the embedded catalog.
func WithCatalog(c *Catalog) BuilderOption {
	return func(cfg *builderConfig) {
		cfg.catalog = c
	}
}

// WithSiteName overrides the catalog's site name.
func WithSiteName(name string) BuilderOption {
	return func(cfg *builderConfig) {
		cfg.siteName = strings.TrimSpace(name)
	}
}

// WithDomain overrides the origin used for canonical and absolute URLs.
func WithDomain(domain string) BuilderOption {
	return func(cfg *builderConfig) {
		cfg.domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	}
}

// WithBuilderLogger attaches a logger used for build diagnostics.
func WithBuilderLogger(logger *zap.Logger) BuilderOption {
	return func(cfg *builderConfig) {
		cfg.logger = logger
	}
}

// NewBuilder loads the catalog and applies overrides from opts.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	cfg := builderConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.catalog == nil {
		cat, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		cfg.catalog = cat
	}
	site := cfg.catalog.Site
	if cfg.siteName != "" {
		site.Name = cfg.siteName
	}
	if cfg.domain != "" {
		site.Domain = cfg.domain
	}
	site.Domain = strings.TrimRight(site.Domain, "/")

	pages := make(map[string]PageTemplate, len(cfg.catalog.Pages))
	for _, p := range cfg.catalog.Pages {
		pages[p.Key] = p
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{site: site, pages: pages, logger: logger}, nil
}

// Site returns the resolved site settings.
func (b *Builder) Site() Site {
	return b.site
}

// Keys lists every known page key in sorted order.
func (b *Builder) Keys() []string {
	keys := make([]string, 0, len(b.pages))
	for k := range b.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Template returns the catalog entry for key.
func (b *Builder) Template(key string) (PageTemplate, bool) {
	p, ok := b.pages[key]
	return p, ok
}

// Build resolves the head for key. Non-empty override fields replace the
// template's values.
func (b *Builder) Build(key string, ov *Overrides) (Head, error) {
	page, ok := b.pages[key]
	if !ok {
		return Head{}, fmt.Errorf("%w: %q", ErrUnknownPage, key)
	}
	if ov != nil {
		page = applyOverrides(page, *ov)
	}

	pageURL := absolute(b.site.Domain, page.Path)
	imageURL := absolute(b.site.Domain, firstNonEmpty(page.Image, b.site.DefaultImage))
	title := b.fullTitle(page)

	meta := Meta{
		Title:       title,
		Description: page.Description,
		Keywords:    page.Keywords,
		Robots:      firstNonEmpty(page.Robots, defaultRobots),
		Canonical:   pageURL,
		OG: OpenGraph{
			Title:       title,
			Description: page.Description,
			Image:       imageURL,
			Type:        ogType(page.Kind),
			URL:         pageURL,
			SiteName:    b.site.Name,
			Locale:      b.site.Locale,
		},
		Twitter: Twitter{Card: twitterCard, Site: b.site.Twitter, Image: imageURL},
	}

	nodes := b.graph(page, pageURL, imageURL)
	b.logger.Debug("seo head built",
		zap.String("page", key),
		zap.String("canonical", pageURL),
		zap.Int("nodes", len(nodes)),
	)
	return Head{
		Title:          title,
		Meta:           meta.Tags(),
		Links:          []LinkTag{{Rel: "canonical", Href: pageURL}},
		StructuredData: Graph(nodes...),
	}, nil
}

// fullTitle is always "<page title> | <site name>".
func (b *Builder) fullTitle(page PageTemplate) string {
	if b.site.Name == "" {
		return page.Title
	}
	return page.Title + " | " + b.site.Name
}

func (b *Builder) graph(page PageTemplate, pageURL, imageURL string) []map[string]any {
	site := b.site
	nodes := []map[string]any{
		Organization(site, page.Kind == KindHome || page.Kind == KindContact),
		WebPage(site, pageURL, page.Title, page.Description, imageURL),
	}
	switch page.Kind {
	case KindHome:
		search := ""
		if site.SearchPath != "" {
			search = absolute(site.Domain, site.SearchPath)
		}
		nodes = append(nodes, WebSite(site, search))
	case KindBrand:
		nodes = append(nodes, Brand(page.Brand, pageURL, imageURL, page.Description))
	case KindService:
		nodes = append(nodes, Service(site, page.Title, page.ServiceType, pageURL, page.Description))
	case KindBlog:
		nodes = append(nodes, Blog(site, pageURL, page.Title, page.Description))
	case KindContact:
		nodes[1]["@type"] = []string{"WebPage", "ContactPage"}
	case KindAbout:
		nodes[1]["@type"] = []string{"WebPage", "AboutPage"}
		nodes[1]["about"] = ref(site.Domain + "/#organization")
	case KindCollection:
		nodes[1]["@type"] = []string{"WebPage", "CollectionPage"}
	}
	if crumbs := b.breadcrumbs(page, pageURL); len(crumbs) > 1 {
		nodes = append(nodes, BreadcrumbList(pageURL, crumbs))
		nodes[1]["breadcrumb"] = ref(pageURL + "#breadcrumb")
	}
	return nodes
}

// breadcrumbs walks the parent chain from the root down to page.
func (b *Builder) breadcrumbs(page PageTemplate, pageURL string) []BreadcrumbItem {
	items := []BreadcrumbItem{{Name: page.Title, Item: pageURL}}
	seen := map[string]bool{page.Key: true}
	for parent := page.Parent; parent != "" && !seen[parent]; {
		p, ok := b.pages[parent]
		if !ok {
			break
		}
		seen[parent] = true
		name := p.Title
		if p.Kind == KindHome {
			name = "Home"
		}
		items = append(items, BreadcrumbItem{Name: name, Item: absolute(b.site.Domain, p.Path)})
		parent = p.Parent
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

func applyOverrides(page PageTemplate, ov Overrides) PageTemplate {
	if s := strings.TrimSpace(ov.Title); s != "" {
		page.Title = s
	}
	if s := strings.TrimSpace(ov.Description); s != "" {
		page.Description = s
	}
	if len(ov.Keywords) > 0 {
		page.Keywords = ov.Keywords
	}
	if s := strings.TrimSpace(ov.Path); s != "" {
		if !strings.HasPrefix(s, "/") && !isAbsoluteURL(s) {
			s = "/" + s
		}
		page.Path = s
	}
	if s := strings.TrimSpace(ov.Image); s != "" {
		page.Image = s
	}
	return page
}

func ogType(kind string) string {
	if kind == KindHome {
		return "website"
	}
	return "article"
}

// absolute joins path onto domain unless path is already an absolute URL.
func absolute(domain, path string) string {
	if path == "" {
		return ""
	}
	if isAbsoluteURL(path) {
		return path
	}
	if strings.HasPrefix(path, "//") {
		return "https:" + path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(domain, "/") + path
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
