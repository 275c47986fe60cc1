package seo

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pages.yaml
var defaultCatalog []byte

// Page kinds select which structured-data nodes a page gets.
const (
	KindHome       = "home"
	KindAbout      = "about"
	KindContact    = "contact"
	KindBrand      = "brand"
	KindCollection = "collection"
	KindService    = "service"
	KindBlog       = "blog"
)

var knownKinds = map[string]bool{
	KindHome: true, KindAbout: true, KindContact: true, KindBrand: true,
	KindCollection: true, KindService: true, KindBlog: true,
}

// Site holds organization-wide values shared by every page.
type Site struct {
	Name         string   `yaml:"name"`
	LegalName    string   `yaml:"legal_name"`
	Domain       string   `yaml:"domain"`
	Logo         string   `yaml:"logo"`
	DefaultImage string   `yaml:"default_image"`
	Locale       string   `yaml:"locale"`
	Languages    []string `yaml:"languages"`
	Twitter      string   `yaml:"twitter"`
	Phone        string   `yaml:"phone"`
	Email        string   `yaml:"email"`
	AreaServed   string   `yaml:"area_served"`
	SearchPath   string   `yaml:"search_path"`
	SameAs       []string `yaml:"same_as"`
	Address      Address  `yaml:"address"`
}

type Address struct {
	Street     string `yaml:"street"`
	Locality   string `yaml:"locality"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
}

// PageTemplate is the default metadata of one page key.
type PageTemplate struct {
	Key         string   `yaml:"key"`
	Kind        string   `yaml:"kind"`
	Path        string   `yaml:"path"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Image       string   `yaml:"image"`
	Robots      string   `yaml:"robots"`
	Brand       string   `yaml:"brand"`
	ServiceType string   `yaml:"service_type"`
	Parent      string   `yaml:"parent"`
}

// Catalog is the full set of page templates.
type Catalog struct {
	Site  Site           `yaml:"site"`
	Pages []PageTemplate `yaml:"pages"`
}

// CatalogError lists every template problem found while loading.
type CatalogError struct {
	Problems []string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("seo: invalid page catalog: %s", strings.Join(e.Problems, "; "))
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CatalogError{Problems: []string{"empty catalog"}}
		}
		return nil, fmt.Errorf("seo: parse page catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(bytes.NewReader(defaultCatalog))
}

func (c *Catalog) validate() error {
	var problems []string
	if strings.TrimSpace(c.Site.Name) == "" {
		problems = append(problems, "site.name is required")
	}
	if strings.TrimSpace(c.Site.Domain) == "" {
		problems = append(problems, "site.domain is required")
	}
	seen := map[string]bool{}
	for i, p := range c.Pages {
		label := p.Key
		if label == "" {
			label = fmt.Sprintf("pages[%d]", i)
			problems = append(problems, label+": key is required")
		}
		if seen[p.Key] {
			problems = append(problems, label+": duplicate key")
		}
		seen[p.Key] = true
		if !knownKinds[p.Kind] {
			problems = append(problems, fmt.Sprintf("%s: unknown kind %q", label, p.Kind))
		}
		if strings.TrimSpace(p.Title) == "" {
			problems = append(problems, label+": title is required")
		}
		if strings.TrimSpace(p.Description) == "" {
			problems = append(problems, label+": description is required")
		}
		if !strings.HasPrefix(p.Path, "/") {
			problems = append(problems, label+": path must start with /")
		}
		if p.Kind == KindBrand && strings.TrimSpace(p.Brand) == "" {
			problems = append(problems, label+": brand pages need a brand name")
		}
	}
	for _, p := range c.Pages {
		if p.Parent != "" && !seen[p.Parent] {
			problems = append(problems, fmt.Sprintf("%s: unknown parent %q", p.Key, p.Parent))
		}
	}
	if len(problems) > 0 {
		return &CatalogError{Problems: problems}
	}
	return nil
}
