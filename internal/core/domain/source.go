package domain

import "time"

// ScraperConfig gates which external collaborator pipeline is invoked for a
// source. The core only stores and exposes these flags; the scrapers read them.
type ScraperConfig struct {
	// ScrapingEnabled marks the source as active for the crawler.
	ScrapingEnabled bool `json:"scraping_enabled"`

	// PDFSupport enables the PDF extraction pipeline for this source.
	PDFSupport bool `json:"pdf_support"`

	// OCREnabled enables OCR fallback when direct text extraction fails.
	OCREnabled bool `json:"ocr_enabled"`

	// Extra holds forward-compatible configuration not modelled above.
	Extra map[string]string `json:"extra,omitempty"`
}

// Source represents a catalogued origin site for normative texts
// (e.g., the Gaceta Oficial). The site key is immutable once any
// document references it.
type Source struct {
	// Site is the unique site key (e.g., "gaceta", "tcp").
	Site string

	// Name is the human-readable display name.
	Name string

	// URL is the origin site address.
	URL string

	// Description is free text about the source.
	Description string

	// Config is the scraper configuration for this source.
	Config ScraperConfig

	// Position preserves registration order for listing.
	Position int

	// CreatedAt is when the source was registered.
	CreatedAt time.Time

	// UpdatedAt is when the source was last updated.
	UpdatedAt time.Time
}
