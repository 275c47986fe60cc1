package seo

import (
	"strings"
)

type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	URL         string
	SiteName    string
	Locale      string
}

type Twitter struct {
	Card  string
	Site  string
	Image string
}

// Meta is the resolved metadata of one page before it is flattened into tags.
type Meta struct {
	Title       string
	Description string
	Keywords    []string
	Robots      string
	Canonical   string
	OG          OpenGraph
	Twitter     Twitter
	// Extra carries page-type specific properties such as article:published_time.
	Extra []MetaTag
}

// MetaTag is a <meta> element. Exactly one of Name or Property is set.
type MetaTag struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content"`
}

// LinkTag is a <link> element.
type LinkTag struct {
	Rel      string `json:"rel"`
	Href     string `json:"href"`
	Hreflang string `json:"hreflang,omitempty"`
}

// Head is everything a page needs in its <head> for search and social previews.
type Head struct {
	Title          string         `json:"title"`
	Meta           []MetaTag      `json:"meta"`
	Links          []LinkTag      `json:"link"`
	StructuredData map[string]any `json:"structuredData"`
}

// Overrides replaces template values for a single build, e.g. when a listing
// template is reused for one specific product series.
type Overrides struct {
	Title       string
	Description string
	Keywords    []string
	Path        string
	Image       string
}

// Lookup returns the content of the meta tag with the given name or property.
func (h Head) Lookup(key string) (string, bool) {
	for _, m := range h.Meta {
		if m.Name == key || m.Property == key {
			return m.Content, true
		}
	}
	return "", false
}

// Canonical returns the canonical link target.
func (h Head) Canonical() string {
	for _, l := range h.Links {
		if l.Rel == "canonical" {
			return l.Href
		}
	}
	return ""
}

// Graph returns the @graph nodes of the structured data.
func (h Head) Graph() []map[string]any {
	nodes, _ := h.StructuredData["@graph"].([]map[string]any)
	return nodes
}

// Tags flattens m into meta tags in a stable order.
func (m Meta) Tags() []MetaTag {
	tags := []MetaTag{{Name: "description", Content: m.Description}}
	if len(m.Keywords) > 0 {
		tags = append(tags, MetaTag{Name: "keywords", Content: strings.Join(m.Keywords, ", ")})
	}
	if m.Robots != "" {
		tags = append(tags, MetaTag{Name: "robots", Content: m.Robots})
	}
	og := []MetaTag{
		{Property: "og:title", Content: m.OG.Title},
		{Property: "og:description", Content: m.OG.Description},
		{Property: "og:type", Content: m.OG.Type},
		{Property: "og:url", Content: m.OG.URL},
		{Property: "og:image", Content: m.OG.Image},
		{Property: "og:site_name", Content: m.OG.SiteName},
		{Property: "og:locale", Content: m.OG.Locale},
	}
	for _, t := range og {
		if t.Content != "" {
			tags = append(tags, t)
		}
	}
	tags = append(tags,
		MetaTag{Name: "twitter:card", Content: m.Twitter.Card},
		MetaTag{Name: "twitter:title", Content: m.OG.Title},
		MetaTag{Name: "twitter:description", Content: m.OG.Description},
	)
	if m.Twitter.Image != "" {
		tags = append(tags, MetaTag{Name: "twitter:image", Content: m.Twitter.Image})
	}
	if m.Twitter.Site != "" {
		tags = append(tags, MetaTag{Name: "twitter:site", Content: m.Twitter.Site})
	}
	return append(tags, m.Extra...)
}
