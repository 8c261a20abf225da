package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mbarkia/darna/internal/darna"
	derrs "github.com/mbarkia/darna/internal/errors"
	"github.com/mbarkia/darna/internal/serverutil"
)

type PostSavedSearchReq struct {
	Name         string   `json:"name"`
	Q            string   `json:"q"`
	City         string   `json:"city"`
	DealType     string   `json:"deal_type"`
	PropertyType string   `json:"property_type"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	MinRooms     *int     `json:"min_rooms"`
	MaxRooms     *int     `json:"max_rooms"`
}

func (req PostSavedSearchReq) Validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return darna.ValidationError{Field: "name", Reason: "is required"}
	}

	return req.query().Validate()
}

func (req PostSavedSearchReq) query() darna.SearchQuery {
	return darna.SearchQuery{
		Q:            req.Q,
		City:         req.City,
		DealType:     req.DealType,
		PropertyType: req.PropertyType,
		MinPrice:     req.MinPrice,
		MaxPrice:     req.MaxPrice,
		MinRooms:     req.MinRooms,
		MaxRooms:     req.MaxRooms,
	}
}

// postSavedSearch stores a named search whose new matches the scan
// workflow turns into alerts.
func (s Server) postSavedSearch(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[PostSavedSearchReq](r.Body)
	if err != nil {
		var verr darna.ValidationError
		if errors.As(err, &verr) {
			return apiError(verr)
		}
		return derrs.E(err, http.StatusBadRequest)
	}

	now := time.Now().UTC()
	doc := darna.Doc{
		"name":       strings.TrimSpace(req.Name),
		"created_at": now,
		"updated_at": now,
	}
	if req.Q != "" {
		doc["q"] = req.Q
	}
	if req.City != "" {
		doc["city"] = req.City
	}
	if req.DealType != "" {
		doc["deal_type"] = req.DealType
	}
	if req.PropertyType != "" {
		doc["property_type"] = req.PropertyType
	}
	if req.MinPrice != nil {
		doc["min_price"] = *req.MinPrice
	}
	if req.MaxPrice != nil {
		doc["max_price"] = *req.MaxPrice
	}
	if req.MinRooms != nil {
		doc["min_rooms"] = *req.MinRooms
	}
	if req.MaxRooms != nil {
		doc["max_rooms"] = *req.MaxRooms
	}

	id, err := s.store.InsertOne(r.Context(), darna.CollectionSavedSearch, doc)
	if err != nil {
		return apiError(err)
	}

	resp := docResp(doc)
	resp["id"] = id

	return serverutil.WriteJSON(w, http.StatusCreated, resp)
}

func (s Server) getSavedSearches(w http.ResponseWriter, r *http.Request) error {
	docs, err := s.store.Find(r.Context(), darna.CollectionSavedSearch, darna.Doc{}, darna.FindOpts{
		Sort: "-created_at",
	})
	if err != nil {
		return apiError(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, docResps(docs))
}

func (s Server) getAlerts(w http.ResponseWriter, r *http.Request) error {
	limit, offset := parsePaginationParams(r, 50, 200)

	filter := darna.Doc{}
	if id := r.URL.Query().Get("saved_search_id"); id != "" {
		filter["saved_search_id"] = id
	}

	docs, err := s.store.Find(r.Context(), darna.CollectionAlert, filter, darna.FindOpts{
		Sort:  "-created_at",
		Limit: int64(limit),
		Skip:  int64(offset),
	})
	if err != nil {
		return apiError(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, docResps(docs))
}
