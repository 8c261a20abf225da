// Package ingest is the listing ingestion pipeline. Raw scraper payloads
// are normalized, keyed by their deduplication identity and upserted, so
// overlapping scraper runs refresh records instead of duplicating them.
package ingest

import (
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mbarkia/darna/internal/darna"
)

// RawListing is a loosely-typed incoming payload. Every field is optional;
// nil means the producer never sent the value, which is different from an
// empty or zero one.
type RawListing struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Price        *float64   `json:"price"`
	Currency     *string    `json:"currency"`
	City         *string    `json:"city"`
	Area         *string    `json:"area"`
	Bedrooms     *int       `json:"bedrooms"`
	Bathrooms    *int       `json:"bathrooms"`
	SurfaceM2    *float64   `json:"surface_m2"`
	DealType     *string    `json:"deal_type"`
	PropertyType *string    `json:"property_type"`
	URL          *string    `json:"url"`
	Images       []string   `json:"images"`
	Source       *string    `json:"source"`
	SourceID     *string    `json:"source_id"`
	PostedAt     *time.Time `json:"posted_at"`
	Lat          *float64   `json:"lat"`
	Lng          *float64   `json:"lng"`
}

const maxDescriptionLen = 2048

// Normalize maps a raw payload plus the caller-asserted source into the
// canonical listing form, or fails with a [darna.ValidationError] naming
// the offending field. It is a pure transform: the store is never touched.
func Normalize(source string, raw RawListing) (darna.Listing, error) {
	if raw.Source != nil && *raw.Source != "" && *raw.Source != source {
		return darna.Listing{}, darna.ValidationError{Field: "source", Reason: "does not match the asserted source"}
	}
	if source == "" {
		return darna.Listing{}, darna.ValidationError{Field: "source", Reason: "is required"}
	}
	src := darna.Source(source)
	if !src.Valid() {
		return darna.Listing{}, darna.ValidationError{Field: "source", Reason: "unknown source"}
	}

	var title string
	if raw.Title != nil {
		title = cleanText(*raw.Title)
	}
	if title == "" {
		return darna.Listing{}, darna.ValidationError{Field: "title", Reason: "is required"}
	}

	l := darna.Listing{
		Title:        title,
		Source:       src,
		PropertyType: darna.PropertyTypeOther,
		Status:       darna.StatusPending,
	}

	if raw.Description != nil {
		if desc := truncate(cleanText(*raw.Description), maxDescriptionLen); desc != "" {
			l.Description = &desc
		}
	}
	if raw.Price != nil {
		if *raw.Price < 0 {
			return darna.Listing{}, darna.ValidationError{Field: "price", Reason: "must be non-negative"}
		}
		l.Price = raw.Price
	}
	if raw.Currency != nil {
		if c := cleanText(*raw.Currency); c != "" {
			l.Currency = &c
		}
	}
	if raw.City != nil {
		if c := cleanText(*raw.City); c != "" {
			l.City = &c
		}
	}
	if raw.Area != nil {
		if a := cleanText(*raw.Area); a != "" {
			l.Area = &a
		}
	}
	if raw.Bedrooms != nil {
		if *raw.Bedrooms < 0 {
			return darna.Listing{}, darna.ValidationError{Field: "bedrooms", Reason: "must be non-negative"}
		}
		l.Bedrooms = raw.Bedrooms
	}
	if raw.Bathrooms != nil {
		if *raw.Bathrooms < 0 {
			return darna.Listing{}, darna.ValidationError{Field: "bathrooms", Reason: "must be non-negative"}
		}
		l.Bathrooms = raw.Bathrooms
	}
	if raw.SurfaceM2 != nil {
		if *raw.SurfaceM2 < 0 {
			return darna.Listing{}, darna.ValidationError{Field: "surface_m2", Reason: "must be non-negative"}
		}
		l.SurfaceM2 = raw.SurfaceM2
	}
	if raw.DealType != nil && *raw.DealType != "" {
		dt := darna.DealType(*raw.DealType)
		if !dt.Valid() {
			return darna.Listing{}, darna.ValidationError{Field: "deal_type", Reason: "must be rent or sale"}
		}
		l.DealType = &dt
	}
	if raw.PropertyType != nil && *raw.PropertyType != "" {
		pt := darna.PropertyType(*raw.PropertyType)
		if !pt.Valid() {
			return darna.Listing{}, darna.ValidationError{Field: "property_type", Reason: "unknown property type"}
		}
		l.PropertyType = pt
	}
	if raw.URL != nil && strings.TrimSpace(*raw.URL) != "" {
		u := strings.TrimSpace(*raw.URL)
		if !validURI(u) {
			return darna.Listing{}, darna.ValidationError{Field: "url", Reason: "must be a well-formed http(s) URI"}
		}
		l.URL = &u
	}
	if len(raw.Images) > 0 {
		images := make([]string, 0, len(raw.Images))
		for _, img := range raw.Images {
			img = strings.TrimSpace(img)
			if !validURI(img) {
				return darna.Listing{}, darna.ValidationError{Field: "images", Reason: "must contain well-formed http(s) URIs"}
			}
			images = append(images, img)
		}
		l.Images = images
	}
	if raw.SourceID != nil {
		if sid := strings.TrimSpace(*raw.SourceID); sid != "" {
			l.SourceID = &sid
		}
	}
	if raw.PostedAt != nil {
		l.PostedAt = raw.PostedAt
	}
	if raw.Lat != nil {
		if *raw.Lat < -90 || *raw.Lat > 90 {
			return darna.Listing{}, darna.ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
		}
		l.Lat = raw.Lat
	}
	if raw.Lng != nil {
		if *raw.Lng < -180 || *raw.Lng > 180 {
			return darna.Listing{}, darna.ValidationError{Field: "lng", Reason: "must be between -180 and 180"}
		}
		l.Lng = raw.Lng
	}

	l.DedupKey = DedupKey(l)

	return l, nil
}

var stripPolicy = bluemonday.StrictPolicy()

// cleanText strips html tags and collapses whitespace runs, so that
// scraped markup fragments and padded strings normalize to the same value.
func cleanText(s string) string {
	s = stripPolicy.Sanitize(s)
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func validURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
