package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchListingStatus(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodPost, "/api/listings", listingBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = do(t, srvr, http.MethodPatch, "/api/listings/"+id+"/status", map[string]any{
		"status": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "approved", got["status"])

	rec = do(t, srvr, http.MethodGet, "/api/listings/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeBody[map[string]any](t, rec)["status"])
}

func TestPatchListingStatusOnlyOnce(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodPost, "/api/listings", listingBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = do(t, srvr, http.MethodPatch, "/api/listings/"+id+"/status", map[string]any{
		"status": "rejected",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// a settled listing stays settled
	rec = do(t, srvr, http.MethodPatch, "/api/listings/"+id+"/status", map[string]any{
		"status": "approved",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srvr, http.MethodGet, "/api/listings/"+id, nil)
	assert.Equal(t, "rejected", decodeBody[map[string]any](t, rec)["status"])
}

func TestPatchListingStatusValidation(t *testing.T) {
	srvr, _ := newTestServer(t)

	rec := do(t, srvr, http.MethodPost, "/api/listings", listingBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	// pending is not a settlement
	rec = do(t, srvr, http.MethodPatch, "/api/listings/"+id+"/status", map[string]any{
		"status": "pending",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srvr, http.MethodPatch, "/api/listings/"+id+"/status", map[string]any{
		"status": "published",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srvr, http.MethodPatch, "/api/listings/missing/status", map[string]any{
		"status": "approved",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
