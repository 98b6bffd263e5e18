package seo

import (
	"errors"
	"strings"

	"github.com/cloudadept/cloudadept-api/internal/config"
	"github.com/cloudadept/cloudadept-api/internal/dto"
)

// ErrPageNotFound is returned for slugs outside the page catalog.
var ErrPageNotFound = errors.New("page not found")

// Metadata describes the head tags of a single page. Keywords, URL and Image
// fall back to the site defaults when empty.
type Metadata struct {
	Title       string
	Description string
	Keywords    string
	URL         string
	Image       string
}

// WithDefaults fills the optional fields from the site configuration.
func (m Metadata) WithDefaults(site config.SiteConfig) Metadata {
	if strings.TrimSpace(m.Keywords) == "" {
		m.Keywords = site.Keywords
	}
	if strings.TrimSpace(m.URL) == "" {
		m.URL = site.URL
	}
	if strings.TrimSpace(m.Image) == "" {
		m.Image = site.Image
	}
	return m
}

// Tags renders the primary, Open Graph and Twitter tags for the page.
func (m Metadata) Tags(siteName string) []dto.MetaTag {
	tags := []dto.MetaTag{
		{Element: "title", Content: m.Title},
		{Element: "meta", Name: "title", Content: m.Title},
		{Element: "meta", Name: "description", Content: m.Description},
		{Element: "meta", Name: "keywords", Content: m.Keywords},
		{Element: "link", Rel: "canonical", Content: m.URL},

		{Element: "meta", Property: "og:type", Content: "website"},
		{Element: "meta", Property: "og:url", Content: m.URL},
		{Element: "meta", Property: "og:title", Content: m.Title},
		{Element: "meta", Property: "og:description", Content: m.Description},
		{Element: "meta", Property: "og:image", Content: m.Image},
	}
	if siteName != "" {
		tags = append(tags, dto.MetaTag{Element: "meta", Property: "og:site_name", Content: siteName})
	}

	return append(tags,
		dto.MetaTag{Element: "meta", Property: "twitter:card", Content: "summary_large_image"},
		dto.MetaTag{Element: "meta", Property: "twitter:url", Content: m.URL},
		dto.MetaTag{Element: "meta", Property: "twitter:title", Content: m.Title},
		dto.MetaTag{Element: "meta", Property: "twitter:description", Content: m.Description},
		dto.MetaTag{Element: "meta", Property: "twitter:image", Content: m.Image},
	)
}

type page struct {
	title       string
	description string
	path        string
}

var pages = map[string]page{
	"home": {
		title:       "CloudAdept Systems | ServiceNow Premier Partner",
		description: "Drive digital transformation with CloudAdept Systems, a premier ServiceNow partner. We offer expert consulting, implementation, and managed services for ITSM, ITOM, CSM, and custom app development to optimize your enterprise workflows.",
		path:        "/",
	},
	"about": {
		title:       "About Us | CloudAdept Systems",
		description: "Learn about CloudAdept Systems' mission to empower businesses through ServiceNow expertise. Discover our vision, core values, and commitment to delivering excellence in digital transformation.",
		path:        "/about",
	},
	"services": {
		title:       "Our Services | CloudAdept Systems",
		description: "Explore our comprehensive ServiceNow services including ITSM, ITOM, CSM, Custom App Development, Platform Integration, GRC, and Now Assist (GenAI) to optimize your enterprise workflows.",
		path:        "/services",
	},
	"contact": {
		title:       "Contact Us | CloudAdept Systems",
		description: "Get in touch with CloudAdept Systems for ServiceNow consulting, implementation, and support. Contact our team to discuss your digital transformation needs and discover how we can help.",
		path:        "/contact",
	},
}

// Catalog resolves page metadata against the configured site.
type Catalog struct {
	site config.SiteConfig
}

// NewCatalog constructs a page catalog.
func NewCatalog(site config.SiteConfig) *Catalog {
	return &Catalog{site: site}
}

func (c *Catalog) SiteName() string { return c.site.Name }

// Lookup returns the resolved metadata for a page slug.
func (c *Catalog) Lookup(slug string) (dto.PageMetadataResponse, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	p, ok := pages[slug]
	if !ok {
		return dto.PageMetadataResponse{}, ErrPageNotFound
	}

	meta := Metadata{Title: p.title, Description: p.description}
	if base := strings.TrimRight(c.site.URL, "/"); base != "" {
		meta.URL = base + p.path
	}
	meta = meta.WithDefaults(c.site)

	return dto.PageMetadataResponse{
		Slug:        slug,
		Title:       meta.Title,
		Description: meta.Description,
		Keywords:    meta.Keywords,
		URL:         meta.URL,
		Image:       meta.Image,
		Tags:        meta.Tags(c.site.Name),
	}, nil
}
