package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbarkia/darna/internal/darna"
)

// Engine is the ingestion coordinator: normalize, derive the dedup key,
// atomic upsert. It holds no locks and no state beyond the store handle;
// all exclusion between racing ingests is delegated to the store's atomic
// upsert.
type Engine struct {
	store darna.Store
	now   func() time.Time
}

func NewEngine(store darna.Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// Outcome reports what a single ingested item did.
type Outcome struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// ItemError reports one skipped item of a batch.
type ItemError struct {
	Index int    `json:"index"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

// BatchOutcome aggregates a batch: counters for successes, ids one per
// input item in input order ("" for skipped items), and the skips.
type BatchOutcome struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	IDs     []string    `json:"ids"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// IngestOne runs a single payload through the full pipeline.
func (e *Engine) IngestOne(ctx context.Context, source string, raw RawListing) (Outcome, error) {
	listing, err := Normalize(source, raw)
	if err != nil {
		return Outcome{}, err
	}

	return e.upsert(ctx, listing)
}

// IngestBatch runs payloads through the pipeline best-effort: an item
// failing validation is skipped and reported without aborting the rest.
// Storage failures abort the batch; items already written stay written.
func (e *Engine) IngestBatch(ctx context.Context, source string, raws []RawListing) (BatchOutcome, error) {
	out := BatchOutcome{
		IDs: make([]string, 0, len(raws)),
	}

	for i, raw := range raws {
		listing, err := Normalize(source, raw)
		var verr darna.ValidationError
		if errors.As(err, &verr) {
			out.IDs = append(out.IDs, "")
			out.Errors = append(out.Errors, ItemError{
				Index: i,
				Field: verr.Field,
				Error: verr.Error(),
			})
			continue
		}
		if err != nil {
			return out, err
		}

		outcome, err := e.upsert(ctx, listing)
		if err != nil {
			return out, fmt.Errorf("error ingesting item %d: %w", i, err)
		}

		out.IDs = append(out.IDs, outcome.ID)
		if outcome.Created {
			out.Created++
		} else {
			out.Updated++
		}
	}

	return out, nil
}

func (e *Engine) upsert(ctx context.Context, l darna.Listing) (Outcome, error) {
	now := e.now().UTC()

	set := setDoc(l)
	set["updated_at"] = now

	// created_at is fixed at first insert; status starts pending and is
	// owned by moderation afterwards. Neither may ride on the refresh path.
	setOnInsert := darna.Doc{
		"created_at": now,
		"status":     string(darna.StatusPending),
	}

	id, created, err := e.store.AtomicUpsert(ctx, darna.CollectionListing,
		darna.Doc{"dedup_key": l.DedupKey}, set, setOnInsert)
	if err != nil {
		return Outcome{}, fmt.Errorf("error upserting listing: %w", err)
	}

	return Outcome{ID: id, Created: created}, nil
}

// setDoc flattens the canonical listing into the fields this write
// supplies. Only present fields appear, so an absent optional field never
// clears a previously stored value.
func setDoc(l darna.Listing) darna.Doc {
	doc := darna.Doc{
		"dedup_key":     l.DedupKey,
		"title":         l.Title,
		"source":        string(l.Source),
		"property_type": string(l.PropertyType),
	}

	if l.Description != nil {
		doc["description"] = *l.Description
	}
	if l.Price != nil {
		doc["price"] = *l.Price
	}
	if l.Currency != nil {
		doc["currency"] = *l.Currency
	}
	if l.City != nil {
		doc["city"] = *l.City
	}
	if l.Area != nil {
		doc["area"] = *l.Area
	}
	if l.Bedrooms != nil {
		doc["bedrooms"] = *l.Bedrooms
	}
	if l.Bathrooms != nil {
		doc["bathrooms"] = *l.Bathrooms
	}
	if l.SurfaceM2 != nil {
		doc["surface_m2"] = *l.SurfaceM2
	}
	if l.DealType != nil {
		doc["deal_type"] = string(*l.DealType)
	}
	if l.URL != nil {
		doc["url"] = *l.URL
	}
	if l.Images != nil {
		doc["images"] = l.Images
	}
	if l.SourceID != nil {
		doc["source_id"] = *l.SourceID
	}
	if l.PostedAt != nil {
		doc["posted_at"] = l.PostedAt.UTC()
	}
	if l.Lat != nil {
		doc["lat"] = *l.Lat
	}
	if l.Lng != nil {
		doc["lng"] = *l.Lng
	}

	return doc
}
