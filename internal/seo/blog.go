package seo

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ExcerptLength is the rune limit for generated descriptions.
const ExcerptLength = 160

const blogKey = "blog"

var (
	markdown    = goldmark.New()
	stripPolicy = bluemonday.StrictPolicy()
)

// BlogPost is the input for an article head.
type BlogPost struct {
	Slug        string
	Title       string
	Description string
	Body        string // Markdown
	Image       string
	Author      string
	Tags        []string
	PublishedAt time.Time
	ModifiedAt  time.Time
}

// BuildArticle builds the head for a single blog post. The description
// falls back to an excerpt of the Markdown body.
func (b *Builder) BuildArticle(post BlogPost) (Head, error) {
	slug := strings.Trim(strings.TrimSpace(post.Slug), "/")
	if slug == "" {
		return Head{}, fmt.Errorf("seo: blog post slug is required")
	}
	if strings.TrimSpace(post.Title) == "" {
		return Head{}, fmt.Errorf("seo: blog post %q has no title", slug)
	}
	description := strings.TrimSpace(post.Description)
	if description == "" {
		ex, err := Excerpt(post.Body, ExcerptLength)
		if err != nil {
			return Head{}, err
		}
		description = ex
	}

	index, ok := b.pages[blogKey]
	if !ok {
		return Head{}, fmt.Errorf("%w: %q", ErrUnknownPage, blogKey)
	}
	page := PageTemplate{
		Key:         blogKey + "/" + slug,
		Kind:        KindBlog,
		Path:        strings.TrimRight(index.Path, "/") + "/" + slug,
		Title:       post.Title,
		Description: firstNonEmpty(description, index.Description),
		Keywords:    post.Tags,
		Image:       post.Image,
		Parent:      blogKey,
	}

	pageURL := absolute(b.site.Domain, page.Path)
	imageURL := absolute(b.site.Domain, firstNonEmpty(page.Image, b.site.DefaultImage))
	title := b.fullTitle(page)

	var extra []MetaTag
	published, modified := formatTime(post.PublishedAt), formatTime(post.ModifiedAt)
	if published != "" {
		extra = append(extra, MetaTag{Property: "article:published_time", Content: published})
	}
	if modified != "" {
		extra = append(extra, MetaTag{Property: "article:modified_time", Content: modified})
	}
	for _, tag := range post.Tags {
		extra = append(extra, MetaTag{Property: "article:tag", Content: tag})
	}

	meta := Meta{
		Title:       title,
		Description: page.Description,
		Keywords:    page.Keywords,
		Robots:      defaultRobots,
		Canonical:   pageURL,
		OG: OpenGraph{
			Title:       title,
			Description: page.Description,
			Image:       imageURL,
			Type:        "article",
			URL:         pageURL,
			SiteName:    b.site.Name,
			Locale:      b.site.Locale,
		},
		Twitter: Twitter{Card: twitterCard, Site: b.site.Twitter, Image: imageURL},
		Extra:   extra,
	}

	nodes := []map[string]any{
		Organization(b.site, false),
		WebPage(b.site, pageURL, page.Title, page.Description, imageURL),
		BlogPosting(b.site, post.Title, pageURL, imageURL, post.Author, published, modified, post.Tags),
	}
	if crumbs := b.breadcrumbs(page, pageURL); len(crumbs) > 1 {
		nodes = append(nodes, BreadcrumbList(pageURL, crumbs))
		nodes[1]["breadcrumb"] = ref(pageURL + "#breadcrumb")
	}

	return Head{
		Title:          title,
		Meta:           meta.Tags(),
		Links:          []LinkTag{{Rel: "canonical", Href: pageURL}},
		StructuredData: Graph(nodes...),
	}, nil
}

// Excerpt renders Markdown, strips every tag and returns at most limit runes
// of collapsed plain text. Cut text ends at a word boundary with an ellipsis.
func Excerpt(source string, limit int) (string, error) {
	if strings.TrimSpace(source) == "" || limit <= 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("seo: render markdown: %w", err)
	}
	text := html.UnescapeString(stripPolicy.Sanitize(buf.String()))
	// NFC keeps a base letter and its combining mark in one rune, so the cut
	// below cannot separate them.
	text = norm.NFC.String(strings.Join(strings.Fields(text), " "))
	if utf8.RuneCountInString(text) <= limit {
		return text, nil
	}

	runes := []rune(text)
	cut := string(runes[:limit-1])
	if !unicode.IsSpace(runes[limit-1]) {
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ,.;:") + "…", nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
