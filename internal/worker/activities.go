package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mbarkia/darna/internal/darna"
)

type activities struct {
	store        darna.Store
	claudeClient *anthropic.Client
}

// Instance to make the workflow a bit more readable
var acts = activities{}

// moderationBatchSize caps how many listings one judging round handles.
const moderationBatchSize = 20

// FetchPendingListings pulls the oldest pending listings, capped so a
// single judging round never grows unbounded.
func (a activities) FetchPendingListings(ctx context.Context) ([]darna.Doc, error) {
	docs, err := a.store.Find(ctx, darna.CollectionListing, darna.Doc{
		"status": string(darna.StatusPending),
	}, darna.FindOpts{
		Sort:  "created_at",
		Limit: moderationBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("error finding pending listings: %s", err)
	}

	return docs, nil
}

// ApplyModeration settles judged listings. A listing that left pending
// after it was judged keeps whatever status it holds now.
func (a activities) ApplyModeration(ctx context.Context, js judgements) error {
	l := activity.GetLogger(ctx)

	for listingID, approved := range js {
		doc, err := a.store.FindOne(ctx, darna.CollectionListing, darna.Doc{"_id": listingID})
		if errors.Is(err, darna.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("error fetching judged listing: %w", err)
		}
		if status, _ := doc["status"].(string); status != string(darna.StatusPending) {
			continue
		}

		status := darna.StatusRejected
		if approved {
			status = darna.StatusApproved
		}
		if _, err := a.store.UpdateByID(ctx, darna.CollectionListing, listingID, darna.Doc{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("error updating listing status: %w", err)
		}
	}

	l.Info("applied moderation", "count", len(js))

	return nil
}

// ListSavedSearches fetches every saved search in the system.
func (a activities) ListSavedSearches(ctx context.Context) ([]darna.SavedSearch, error) {
	docs, err := a.store.Find(ctx, darna.CollectionSavedSearch, darna.Doc{}, darna.FindOpts{})
	if err != nil {
		return nil, fmt.Errorf("error listing saved searches: %s", err)
	}

	searches := make([]darna.SavedSearch, 0, len(docs))
	for _, doc := range docs {
		searches = append(searches, savedSearchFromDoc(doc))
	}

	return searches, nil
}

// MatchListings finds approved listings matching a saved search. Matches
// already alerted on are absorbed later by the alert upsert.
func (a activities) MatchListings(ctx context.Context, search darna.SavedSearch) ([]darna.Alert, error) {
	query := search.Query()
	query.Status = string(darna.StatusApproved)

	docs, err := a.store.Find(ctx, darna.CollectionListing, query.Filter(), darna.FindOpts{
		Sort:  "-created_at",
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("error matching listings for %s: %s", search.ID, err)
	}

	alerts := make([]darna.Alert, 0, len(docs))
	for _, doc := range docs {
		listingID, _ := doc["_id"].(string)
		title, _ := doc["title"].(string)
		alerts = append(alerts, darna.Alert{
			SavedSearchID: search.ID,
			ListingID:     listingID,
			ListingTitle:  title,
		})
	}

	return alerts, nil
}

// RecordAlerts upserts alerts so a listing alerts once per saved search no
// matter how many scans see it.
func (a activities) RecordAlerts(ctx context.Context, alerts []darna.Alert) error {
	l := activity.GetLogger(ctx)

	var created int
	for _, alert := range alerts {
		now := time.Now().UTC()
		_, wasNew, err := a.store.AtomicUpsert(ctx, darna.CollectionAlert,
			darna.Doc{
				"saved_search_id": alert.SavedSearchID,
				"listing_id":      alert.ListingID,
			},
			darna.Doc{
				"listing_title": alert.ListingTitle,
				"updated_at":    now,
			},
			darna.Doc{"created_at": now},
		)
		if err != nil {
			return fmt.Errorf("error recording alert: %w", err)
		}
		if wasNew {
			created++
		}
	}

	l.Info("recorded alerts", "count", len(alerts), "new", created)

	return nil
}

func savedSearchFromDoc(doc darna.Doc) darna.SavedSearch {
	var s darna.SavedSearch
	s.ID, _ = doc["_id"].(string)
	s.Name, _ = doc["name"].(string)
	s.Q, _ = doc["q"].(string)
	s.City, _ = doc["city"].(string)
	s.DealType, _ = doc["deal_type"].(string)
	s.PropertyType, _ = doc["property_type"].(string)
	if v, ok := doc["min_price"].(float64); ok {
		s.MinPrice = &v
	}
	if v, ok := doc["max_price"].(float64); ok {
		s.MaxPrice = &v
	}
	if v, ok := docInt(doc["min_rooms"]); ok {
		s.MinRooms = &v
	}
	if v, ok := docInt(doc["max_rooms"]); ok {
		s.MaxRooms = &v
	}

	return s
}

func docInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
