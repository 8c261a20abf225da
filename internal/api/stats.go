package api

import (
	"net/http"

	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/serverutil"
)

// getStats aggregates listing counts by source, status and city, plus an
// average price per bucket where prices exist.
func (s Server) getStats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	groupBy := func(field string) ([]darna.Doc, error) {
		return s.store.Aggregate(ctx, darna.CollectionListing, []darna.Doc{
			{"$group": darna.Doc{
				"_id":       "$" + field,
				"count":     darna.Doc{"$sum": 1},
				"avg_price": darna.Doc{"$avg": "$price"},
			}},
		})
	}

	bySource, err := groupBy("source")
	if err != nil {
		return apiError(err)
	}
	byStatus, err := groupBy("status")
	if err != nil {
		return apiError(err)
	}
	byCity, err := groupBy("city")
	if err != nil {
		return apiError(err)
	}

	// The store reports counts as whatever numeric type it favors
	var total int
	for _, row := range byStatus {
		switch n := row["count"].(type) {
		case int:
			total += n
		case float64:
			total += int(n)
		}
	}

	return serverutil.WriteJSON(w, http.StatusOK, darna.Doc{
		"total":     total,
		"by_source": statGroups(bySource),
		"by_status": statGroups(byStatus),
		"by_city":   statGroups(byCity),
	})
}

func statGroups(rows []darna.Doc) []darna.Doc {
	out := make([]darna.Doc, 0, len(rows))
	for _, row := range rows {
		g := darna.Doc{
			"key":   row["_id"],
			"count": row["count"],
		}
		if avg, ok := row["avg_price"].(float64); ok {
			g["avg_price"] = avg
		}
		out = append(out, g)
	}

	return out
}
