package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/ingest"
	"github.com/mbarkia/darna/internal/memstore"
	"github.com/mbarkia/darna/internal/mongo"
)

func ptr[T any](v T) *T { return &v }

func newTestServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	srvr := NewServer(ServerConfig{Port: 0, CorsHeader: "*"}, store, ingest.NewEngine(store), store)
	return srvr, store
}

// do routes a request through the full middleware and handler stack.
func do(t *testing.T, srvr *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	srvr.Handler.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestGetRoot(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Tunisia Real Estate Aggregator API", got["name"])
	assert.Equal(t, 1.0, got["version"])
}

func TestGetHealthConnected(t *testing.T) {
	srvr, store := newTestServer(t)
	_, err := store.InsertOne(context.Background(), darna.CollectionListing, darna.Doc{"title": "x"})
	require.NoError(t, err)

	rec := do(t, srvr, http.MethodGet, "/test", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[HealthResp](t, rec)
	assert.Equal(t, "set", got.DatabaseURL)
	assert.Equal(t, "connected", got.ConnectionStatus)
	assert.Contains(t, got.Collections, darna.CollectionListing)
}

func TestGetHealthUnconfigured(t *testing.T) {
	store := mongo.Unavailable{}
	srvr := NewServer(ServerConfig{Port: 0, CorsHeader: "*"}, store, ingest.NewEngine(store), store)

	rec := do(t, srvr, http.MethodGet, "/test", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[HealthResp](t, rec)
	assert.Equal(t, "not set", got.DatabaseURL)
	assert.NotEqual(t, "connected", got.ConnectionStatus)
	assert.Empty(t, got.Collections)
}

func TestStorageUnavailableAnswers503(t *testing.T) {
	store := mongo.Unavailable{}
	srvr := NewServer(ServerConfig{Port: 0, CorsHeader: "*"}, store, ingest.NewEngine(store), store)

	rec := do(t, srvr, http.MethodGet, "/api/listings", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, srvr, http.MethodPost, "/api/listings", map[string]any{
		"listing": map[string]any{"title": "Studio", "source": "tayara"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
