package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mbarkia/darna/internal/darna"
	derrs "github.com/mbarkia/darna/internal/errors"
	"github.com/mbarkia/darna/internal/serverutil"
)

type PatchStatusReq struct {
	Status string `json:"status"`
}

// patchListingStatus settles a pending listing to approved or rejected.
// A listing that is no longer pending answers 409 and keeps its status.
func (s Server) patchListingStatus(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx       = r.Context()
		listingID = mux.Vars(r)["listingID"]
	)

	var body PatchStatusReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return derrs.E(err, http.StatusBadRequest)
	}

	next := darna.Status(body.Status)
	if next != darna.StatusApproved && next != darna.StatusRejected {
		return apiError(darna.ValidationError{Field: "status", Reason: "must be approved or rejected"})
	}

	doc, err := s.store.FindOne(ctx, darna.CollectionListing, darna.Doc{"_id": listingID})
	if err != nil {
		return apiError(err)
	}
	if current, _ := doc["status"].(string); current != string(darna.StatusPending) {
		return derrs.E(fmt.Sprintf("listing is already %s", current), http.StatusConflict)
	}

	n, err := s.store.UpdateByID(ctx, darna.CollectionListing, listingID, darna.Doc{
		"status":     string(next),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return apiError(err)
	}
	if n == 0 {
		return derrs.E("not found", http.StatusNotFound)
	}

	return serverutil.WriteJSON(w, http.StatusOK, darna.Doc{
		"id":     listingID,
		"status": string(next),
	})
}
