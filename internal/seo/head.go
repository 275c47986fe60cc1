package seo

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StructuredDataID is the id of the JSON-LD script element managed by Apply.
const StructuredDataID = "seo-structured-data"

// managedSelector matches every head element owned by Apply.
var managedSelector = strings.Join([]string{
	"title",
	`meta[name="description"]`,
	`meta[name="keywords"]`,
	`meta[name="robots"]`,
	`meta[name^="twitter:"]`,
	`meta[property^="og:"]`,
	`meta[property^="article:"]`,
	`link[rel="canonical"]`,
	"script#" + StructuredDataID,
}, ", ")

// HTML renders h as head markup. Elements are written without separating
// whitespace so that re-applying the same head is byte-stable.
func (h Head) HTML() string {
	var b strings.Builder
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(h.Title))
	b.WriteString("</title>")
	for _, m := range h.Meta {
		attr, key := "name", m.Name
		if m.Property != "" {
			attr, key = "property", m.Property
		}
		fmt.Fprintf(&b, `<meta %s="%s" content="%s"/>`, attr, html.EscapeString(key), html.EscapeString(m.Content))
	}
	for _, l := range h.Links {
		fmt.Fprintf(&b, `<link rel="%s" href="%s"`, html.EscapeString(l.Rel), html.EscapeString(l.Href))
		if l.Hreflang != "" {
			fmt.Fprintf(&b, ` hreflang="%s"`, html.EscapeString(l.Hreflang))
		}
		b.WriteString("/>")
	}
	if len(h.StructuredData) > 0 {
		if data := JSON(h.StructuredData); data != "" {
			fmt.Fprintf(&b, `<script type="application/ld+json" id="%s">%s</script>`, StructuredDataID, data)
		}
	}
	return b.String()
}

// Apply reads an HTML document from r, replaces its managed head elements
// with head and writes the result to w. Unmanaged head content is kept.
func Apply(w io.Writer, r io.Reader, head Head) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("seo: parse document: %w", err)
	}
	target := doc.Find("head").First()
	if target.Length() == 0 {
		return fmt.Errorf("seo: document has no head element")
	}
	target.Find(managedSelector).Remove()
	target.AppendHtml(head.HTML())
	if err := html.Render(w, doc.Nodes[0]); err != nil {
		return fmt.Errorf("seo: render document: %w", err)
	}
	return nil
}
