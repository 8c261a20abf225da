package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarkia/darna/internal/darna"
)

func TestPostSavedSearch(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodPost, "/api/saved-searches", map[string]any{
		"name":      "Sousse rentals",
		"city":      "sousse",
		"deal_type": "rent",
		"max_price": 600.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[map[string]any](t, rec)
	assert.NotEmpty(t, got["id"])
	assert.Equal(t, "Sousse rentals", got["name"])
	assert.Equal(t, "rent", got["deal_type"])
	assert.Equal(t, 600.0, got["max_price"])

	rec = do(t, srvr, http.MethodGet, "/api/saved-searches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestPostSavedSearchValidation(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodPost, "/api/saved-searches", map[string]any{
		"city": "sousse",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srvr, http.MethodPost, "/api/saved-searches", map[string]any{
		"name":      "Bad",
		"deal_type": "lease",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srvr, http.MethodPost, "/api/saved-searches", map[string]any{
		"name":      "Bad",
		"min_price": -5.0,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetAlerts(t *testing.T) {
	srvr, store := newTestServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, alert := range []darna.Doc{
		{"saved_search_id": "s1", "listing_id": "l1", "listing_title": "Studio", "created_at": now},
		{"saved_search_id": "s1", "listing_id": "l2", "listing_title": "Villa", "created_at": now.Add(time.Second)},
		{"saved_search_id": "s2", "listing_id": "l3", "listing_title": "Duplex", "created_at": now.Add(2 * time.Second)},
	} {
		_, err := store.InsertOne(ctx, darna.CollectionAlert, alert)
		require.NoError(t, err)
	}

	rec := do(t, srvr, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]map[string]any](t, rec)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, "Duplex", all[0]["listing_title"])

	rec = do(t, srvr, http.MethodGet, "/api/alerts?saved_search_id=s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = do(t, srvr, http.MethodGet, "/api/alerts?saved_search_id=nope", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))
}
