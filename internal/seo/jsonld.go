package seo

import (
	"encoding/json"
	"strings"
)

const schemaContext = "https://schema.org"

// JSON marshals v to a compact JSON string. It returns an empty string on error.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Graph wraps nodes in a single JSON-LD document.
func Graph(nodes ...map[string]any) map[string]any {
	return map[string]any{
		"@context": schemaContext,
		"@graph":   nodes,
	}
}

func ref(id string) map[string]any {
	return map[string]any{"@id": id}
}

// Organization returns the publisher node. contact is optional.
func Organization(site Site, contact bool) map[string]any {
	m := map[string]any{
		"@type": "Organization",
		"@id":   site.Domain + "/#organization",
		"name":  site.Name,
		"url":   site.Domain + "/",
	}
	if site.LegalName != "" {
		m["legalName"] = site.LegalName
	}
	if site.Logo != "" {
		m["logo"] = absolute(site.Domain, site.Logo)
	}
	if len(site.SameAs) > 0 {
		m["sameAs"] = site.SameAs
	}
	if contact && (site.Phone != "" || site.Email != "") {
		cp := map[string]any{
			"@type":             "ContactPoint",
			"contactType":       "sales",
			"availableLanguage": site.Languages,
		}
		if site.Phone != "" {
			cp["telephone"] = site.Phone
		}
		if site.Email != "" {
			cp["email"] = site.Email
		}
		m["contactPoint"] = cp
	}
	if site.Address.Street != "" {
		m["address"] = map[string]any{
			"@type":           "PostalAddress",
			"streetAddress":   site.Address.Street,
			"addressLocality": site.Address.Locality,
			"postalCode":      site.Address.PostalCode,
			"addressCountry":  site.Address.Country,
		}
	}
	return m
}

// WebSite returns the site node with an optional SearchAction.
func WebSite(site Site, searchActionURL string) map[string]any {
	m := map[string]any{
		"@type":     "WebSite",
		"@id":       site.Domain + "/#website",
		"name":      site.Name,
		"url":       site.Domain + "/",
		"publisher": ref(site.Domain + "/#organization"),
	}
	if site.Locale != "" {
		m["inLanguage"] = site.Language()
	}
	if searchActionURL != "" {
		m["potentialAction"] = map[string]any{
			"@type":       "SearchAction",
			"target":      searchActionURL + "{search_term_string}",
			"query-input": "required name=search_term_string",
		}
	}
	return m
}

// WebPage returns the node describing the page itself.
func WebPage(site Site, url, name, description, imageURL string) map[string]any {
	m := map[string]any{
		"@type":       "WebPage",
		"@id":         url + "#webpage",
		"url":         url,
		"name":        name,
		"description": description,
		"isPartOf":    ref(site.Domain + "/#website"),
		"publisher":   ref(site.Domain + "/#organization"),
	}
	if imageURL != "" {
		m["primaryImageOfPage"] = map[string]any{"@type": "ImageObject", "url": imageURL}
	}
	if site.Locale != "" {
		m["inLanguage"] = site.Language()
	}
	return m
}

// Brand returns a brand node carried by the distributor.
func Brand(name, url, logoURL, description string) map[string]any {
	m := map[string]any{
		"@type": "Brand",
		"@id":   url + "#brand",
		"name":  name,
		"url":   url,
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	if description != "" {
		m["description"] = description
	}
	return m
}

// Service returns a service offered by the organization.
func Service(site Site, name, serviceType, url, description string) map[string]any {
	m := map[string]any{
		"@type":       "Service",
		"@id":         url + "#service",
		"name":        name,
		"url":         url,
		"description": description,
		"provider":    ref(site.Domain + "/#organization"),
	}
	if serviceType != "" {
		m["serviceType"] = serviceType
	}
	if site.AreaServed != "" {
		m["areaServed"] = site.AreaServed
	}
	return m
}

// Blog returns the blog index node.
func Blog(site Site, url, name, description string) map[string]any {
	return map[string]any{
		"@type":       "Blog",
		"@id":         url + "#blog",
		"url":         url,
		"name":        name,
		"description": description,
		"publisher":   ref(site.Domain + "/#organization"),
	}
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(url string, items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@type":           "BreadcrumbList",
		"@id":             url + "#breadcrumb",
		"itemListElement": el,
	}
}

// BlogPosting returns an article node for a single blog post.
func BlogPosting(site Site, headline, url, imageURL, authorName, datePublished, dateModified string, keywords []string) map[string]any {
	m := map[string]any{
		"@type":            "BlogPosting",
		"@id":              url + "#article",
		"headline":         headline,
		"url":              url,
		"mainEntityOfPage": ref(url + "#webpage"),
		"publisher":        ref(site.Domain + "/#organization"),
	}
	if imageURL != "" {
		m["image"] = imageURL
	}
	if authorName != "" {
		m["author"] = map[string]any{"@type": "Person", "name": authorName}
	} else {
		m["author"] = ref(site.Domain + "/#organization")
	}
	if datePublished != "" {
		m["datePublished"] = datePublished
	}
	if dateModified != "" {
		m["dateModified"] = dateModified
	}
	if len(keywords) > 0 {
		m["keywords"] = keywords
	}
	return m
}

// Language returns the locale as a BCP 47 tag, e.g. en_US becomes en-US.
func (s Site) Language() string {
	return strings.ReplaceAll(s.Locale, "_", "-")
}
