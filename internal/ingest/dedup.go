package ingest

import (
	"strconv"
	"time"

	"github.com/mbarkia/darna/internal/darna"
)

// DedupKey derives the deterministic deduplication identity for a listing.
//
// A non-empty url wins outright: two listings sharing an original URL are
// the same listing. Without one, the key falls back to title, price and
// posted_at joined by "-", with "" standing in for absent parts. The
// fallback is deliberately weak and may merge coincidentally identical
// listings; that trade-off is accepted. A listing with none of the three
// parts keys as "--", which is accepted too.
//
// The key is a pure function of the listing's own fields, so re-ingesting
// identical source data always lands on the same record.
func DedupKey(l darna.Listing) string {
	if l.URL != nil && *l.URL != "" {
		return *l.URL
	}

	var price string
	if l.Price != nil {
		price = strconv.FormatFloat(*l.Price, 'f', -1, 64)
	}
	var postedAt string
	if l.PostedAt != nil {
		postedAt = l.PostedAt.UTC().Format(time.RFC3339)
	}

	return l.Title + "-" + price + "-" + postedAt
}
