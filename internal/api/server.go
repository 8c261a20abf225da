package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/ingest"
	"github.com/mbarkia/darna/internal/serverutil"
)

type (
	// Server is an instance of the aggregator API. It handles listing
	// ingestion and search along with saved-search management.
	Server struct {
		*http.Server

		fetchClient  *http.Client
		previewCache *lru.Cache[string, PreviewResp]

		store  darna.Store
		engine *ingest.Engine
		health darna.HealthChecker
	}

	ServerConfig struct {
		Port       int
		CorsHeader string
	}
)

func NewServer(config ServerConfig, store darna.Store, engine *ingest.Engine, health darna.HealthChecker) *Server {
	var (
		r        = serverutil.ErrRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, PreviewResp](1024)
	)

	srvr := Server{
		fetchClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		previewCache: cache,
		store:        store,
		engine:       engine,
		health:       health,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.RequestIDMiddleware, serverutil.AccessLogMiddleware) // Log everything

	// Service identity and health
	r.HandleFuncE("/", srvr.getRoot).Methods(http.MethodGet)
	r.HandleFuncE("/test", srvr.getHealth).Methods(http.MethodGet)

	// Ingestion
	r.HandleFuncE("/api/listings", srvr.postListing).Methods(http.MethodPost)
	r.HandleFuncE("/api/ingest/{source}", srvr.postIngestBatch).Methods(http.MethodPost)

	// Search and detail
	r.HandleFuncE("/api/listings", srvr.getListings).Methods(http.MethodGet)
	r.HandleFuncE("/api/listings/{listingID}", srvr.getListing).Methods(http.MethodGet)
	r.HandleFuncE("/api/listings/{listingID}/preview", srvr.getListingPreview).Methods(http.MethodGet)

	// Moderation
	r.HandleFuncE("/api/listings/{listingID}/status", srvr.patchListingStatus).Methods(http.MethodPatch)

	// Saved searches and the alerts they produce
	r.HandleFuncE("/api/saved-searches", srvr.postSavedSearch).Methods(http.MethodPost)
	r.HandleFuncE("/api/saved-searches", srvr.getSavedSearches).Methods(http.MethodGet)
	r.HandleFuncE("/api/alerts", srvr.getAlerts).Methods(http.MethodGet)

	// Aggregated counts
	r.HandleFuncE("/api/stats", srvr.getStats).Methods(http.MethodGet)

	slog.Debug("configured darna server", "port", config.Port)

	return &srvr
}
