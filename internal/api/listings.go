package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	readability "github.com/go-shiori/go-readability"
	"github.com/gorilla/mux"
	"github.com/sym01/htmlsanitizer"

	"github.com/mbarkia/darna/internal/darna"
	derrs "github.com/mbarkia/darna/internal/errors"
	"github.com/mbarkia/darna/internal/ingest"
	"github.com/mbarkia/darna/internal/serverutil"
)

type PostListingReq struct {
	Listing ingest.RawListing `json:"listing"`
}

// postListing ingests a single listing. The payload's own source field is
// the asserted source. A brand new listing answers 201; a refresh of one
// already known answers 200.
func (s Server) postListing(w http.ResponseWriter, r *http.Request) error {
	var body PostListingReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return derrs.E(err, http.StatusBadRequest)
	}

	var source string
	if body.Listing.Source != nil {
		source = *body.Listing.Source
	}

	out, err := s.engine.IngestOne(r.Context(), source, body.Listing)
	if err != nil {
		return apiError(err)
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}

	return serverutil.WriteJSON(w, status, out)
}

type IngestBatchReq struct {
	Listings []ingest.RawListing `json:"listings"`
}

// postIngestBatch ingests a scraper run for one source. Items failing
// validation are skipped and reported; the rest land.
func (s Server) postIngestBatch(w http.ResponseWriter, r *http.Request) error {
	source := mux.Vars(r)["source"]
	if !darna.Source(source).Valid() {
		return apiError(darna.ValidationError{Field: "source", Reason: "unknown source"})
	}

	var body IngestBatchReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return derrs.E(err, http.StatusBadRequest)
	}
	if len(body.Listings) == 0 {
		return derrs.E("listings is required", http.StatusBadRequest)
	}

	out, err := s.engine.IngestBatch(r.Context(), source, body.Listings)
	if err != nil {
		return apiError(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, out)
}

func (s Server) getListings(w http.ResponseWriter, r *http.Request) error {
	limit, offset := parsePaginationParams(r, 50, 200) // default=50, max=200

	query, err := searchQueryFromRequest(r)
	if err != nil {
		return apiError(err)
	}

	docs, err := s.store.Find(r.Context(), darna.CollectionListing, query.Filter(), darna.FindOpts{
		Sort:  "-created_at",
		Limit: int64(limit),
		Skip:  int64(offset),
	})
	if err != nil {
		return apiError(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, docResps(docs))
}

func (s Server) getListing(w http.ResponseWriter, r *http.Request) error {
	doc, err := s.store.FindOne(r.Context(), darna.CollectionListing,
		darna.Doc{"_id": mux.Vars(r)["listingID"]})
	if err != nil {
		return apiError(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, docResp(doc))
}

type PreviewResp struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	ReaderContent string `json:"reader_content"`
}

// getListingPreview fetches the listing's original page and strips it down
// to readable content.
func (s Server) getListingPreview(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx       = r.Context()
		listingID = mux.Vars(r)["listingID"]
	)

	doc, err := s.store.FindOne(ctx, darna.CollectionListing, darna.Doc{"_id": listingID})
	if err != nil {
		return apiError(err)
	}

	rawURL, _ := doc["url"].(string)
	if rawURL == "" {
		return derrs.E("listing has no source url to preview", http.StatusUnprocessableEntity)
	}

	// Cache results for less processing and to prevent refetches
	if resp, ok := s.previewCache.Get(listingID); ok {
		return serverutil.WriteJSON(w, http.StatusOK, resp)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("error with the listing's url: %s", err)
	}

	// Fetch the actual page
	resp, err := s.fetchClient.Get(rawURL)
	if err != nil {
		return derrs.E(fmt.Errorf("error fetching the listing page: %w", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()

	// Strip it for readability and sanitize
	parser := readability.NewParser()
	article, err := parser.Parse(resp.Body, u)
	if err != nil {
		return err
	}

	sanitizer := htmlsanitizer.NewHTMLSanitizer()
	contents, err := sanitizer.SanitizeString(article.Content)
	if err != nil {
		return err
	}

	title, _ := doc["title"].(string)
	ret := PreviewResp{
		ID:            listingID,
		URL:           rawURL,
		Title:         title,
		ReaderContent: contents,
	}
	// Add to the cache for next time
	s.previewCache.Add(listingID, ret)

	return serverutil.WriteJSON(w, http.StatusOK, ret)
}

func searchQueryFromRequest(r *http.Request) (darna.SearchQuery, error) {
	params := r.URL.Query()

	query := darna.SearchQuery{
		Q:            params.Get("q"),
		City:         params.Get("city"),
		DealType:     params.Get("deal_type"),
		PropertyType: params.Get("property_type"),
		Source:       params.Get("source"),
		Status:       params.Get("status"),
	}

	var err error
	if query.MinPrice, err = floatParam(params, "min_price"); err != nil {
		return query, err
	}
	if query.MaxPrice, err = floatParam(params, "max_price"); err != nil {
		return query, err
	}
	if query.MinRooms, err = intParam(params, "min_rooms"); err != nil {
		return query, err
	}
	if query.MaxRooms, err = intParam(params, "max_rooms"); err != nil {
		return query, err
	}

	return query, query.Validate()
}

func floatParam(params url.Values, name string) (*float64, error) {
	raw := params.Get(name)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, darna.ValidationError{Field: name, Reason: "must be a number"}
	}

	return &v, nil
}

func intParam(params url.Values, name string) (*int, error) {
	raw := params.Get(name)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, darna.ValidationError{Field: name, Reason: "must be an integer"}
	}

	return &v, nil
}
