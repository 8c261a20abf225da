// Package darna holds the domain types for the listing aggregator: the
// canonical Listing entity, its enumerations, the store contract, and the
// error taxonomy shared by every layer.
package darna

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a lookup that matched nothing.
	ErrNotFound = errors.New("resource not found")

	// ErrStorageUnavailable signals that the document store is not
	// configured or not reachable. Operations fail whole: no partial
	// writes happen under it.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports a payload field that is missing or violates its
// constraint. It never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Source is the marketplace a listing was scraped from. Unknown sources are
// rejected at normalization, never stored.
type Source string

const (
	SourceFacebook        Source = "facebook"
	SourceTayara          Source = "tayara"
	SourceTunisieAnnonces Source = "tunisie-annonces"
	SourceOther           Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourceFacebook, SourceTayara, SourceTunisieAnnonces, SourceOther:
		return true
	}
	return false
}

type DealType string

const (
	DealTypeRent DealType = "rent"
	DealTypeSale DealType = "sale"
)

func (d DealType) Valid() bool {
	return d == DealTypeRent || d == DealTypeSale
}

type PropertyType string

const (
	PropertyTypeApartment PropertyType = "apartment"
	PropertyTypeHouse     PropertyType = "house"
	PropertyTypeLand      PropertyType = "land"
	PropertyTypeVilla     PropertyType = "villa"
	PropertyTypeStudio    PropertyType = "studio"
	PropertyTypeOffice    PropertyType = "office"
	PropertyTypeOther     PropertyType = "other"
)

func (p PropertyType) Valid() bool {
	switch p {
	case PropertyTypeApartment, PropertyTypeHouse, PropertyTypeLand,
		PropertyTypeVilla, PropertyTypeStudio, PropertyTypeOffice, PropertyTypeOther:
		return true
	}
	return false
}

// Status is the moderation lifecycle flag. New listings start pending and
// move to approved or rejected exactly once; a refresh upsert never touches
// it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type (
	// Listing is the canonical normalized record, one per dedup key.
	// Pointer fields are optional: nil means the source never supplied the
	// value, which is distinct from an empty or zero one.
	Listing struct {
		ID       string `bson:"_id,omitempty" json:"id,omitempty"`
		DedupKey string `bson:"dedup_key" json:"dedup_key"`

		Title       string   `bson:"title" json:"title"`
		Description *string  `bson:"description,omitempty" json:"description,omitempty"`
		Price       *float64 `bson:"price,omitempty" json:"price,omitempty"`
		Currency    *string  `bson:"currency,omitempty" json:"currency,omitempty"`
		City        *string  `bson:"city,omitempty" json:"city,omitempty"`
		Area        *string  `bson:"area,omitempty" json:"area,omitempty"`
		Bedrooms    *int     `bson:"bedrooms,omitempty" json:"bedrooms,omitempty"`
		Bathrooms   *int     `bson:"bathrooms,omitempty" json:"bathrooms,omitempty"`
		SurfaceM2   *float64 `bson:"surface_m2,omitempty" json:"surface_m2,omitempty"`

		DealType     *DealType    `bson:"deal_type,omitempty" json:"deal_type,omitempty"`
		PropertyType PropertyType `bson:"property_type" json:"property_type"`

		URL      *string    `bson:"url,omitempty" json:"url,omitempty"`
		Images   []string   `bson:"images,omitempty" json:"images,omitempty"`
		Source   Source     `bson:"source" json:"source"`
		SourceID *string    `bson:"source_id,omitempty" json:"source_id,omitempty"`
		PostedAt *time.Time `bson:"posted_at,omitempty" json:"posted_at,omitempty"`

		// Enrichment, written by collaborators, never by ingestion.
		Lat          *float64 `bson:"lat,omitempty" json:"lat,omitempty"`
		Lng          *float64 `bson:"lng,omitempty" json:"lng,omitempty"`
		GeocodedCity *string  `bson:"geocoded_city,omitempty" json:"geocoded_city,omitempty"`
		GeocodedArea *string  `bson:"geocoded_area,omitempty" json:"geocoded_area,omitempty"`

		Status Status `bson:"status" json:"status"`

		CreatedAt time.Time `bson:"created_at" json:"created_at"`
		UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	}

	// SavedSearch is a stored search form. Pass-through record, no dedup
	// logic of its own.
	SavedSearch struct {
		ID           string   `bson:"_id,omitempty" json:"id,omitempty"`
		Name         string   `bson:"name" json:"name"`
		Q            string   `bson:"q,omitempty" json:"q,omitempty"`
		City         string   `bson:"city,omitempty" json:"city,omitempty"`
		DealType     string   `bson:"deal_type,omitempty" json:"deal_type,omitempty"`
		PropertyType string   `bson:"property_type,omitempty" json:"property_type,omitempty"`
		MinPrice     *float64 `bson:"min_price,omitempty" json:"min_price,omitempty"`
		MaxPrice     *float64 `bson:"max_price,omitempty" json:"max_price,omitempty"`
		MinRooms     *int     `bson:"min_rooms,omitempty" json:"min_rooms,omitempty"`
		MaxRooms     *int     `bson:"max_rooms,omitempty" json:"max_rooms,omitempty"`

		CreatedAt time.Time `bson:"created_at" json:"created_at"`
		UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	}

	// Alert records that a listing matched a saved search. At most one
	// exists per (saved search, listing) pair.
	Alert struct {
		ID            string    `bson:"_id,omitempty" json:"id,omitempty"`
		SavedSearchID string    `bson:"saved_search_id" json:"saved_search_id"`
		ListingID     string    `bson:"listing_id" json:"listing_id"`
		ListingTitle  string    `bson:"listing_title" json:"listing_title"`
		CreatedAt     time.Time `bson:"created_at" json:"created_at"`
		UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
	}
)

// Query turns the saved search back into the filter form used against the
// listing collection.
func (s SavedSearch) Query() SearchQuery {
	return SearchQuery{
		Q:            s.Q,
		City:         s.City,
		DealType:     s.DealType,
		PropertyType: s.PropertyType,
		MinPrice:     s.MinPrice,
		MaxPrice:     s.MaxPrice,
		MinRooms:     s.MinRooms,
		MaxRooms:     s.MaxRooms,
	}
}
