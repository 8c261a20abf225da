package api

import (
	"net/http"

	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/serverutil"
)

func (s Server) getRoot(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, darna.Doc{
		"name":    "Tunisia Real Estate Aggregator API",
		"version": 1,
	})
}

type HealthResp struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	DatabaseURL      string   `json:"database_url"`
	DatabaseName     string   `json:"database_name"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

// getHealth reports whether the backing database is reachable. It always
// answers 200; the body carries the verdict.
func (s Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	report := s.health.Health(r.Context())

	resp := HealthResp{
		Backend:      "Go + MongoDB",
		Database:     "MongoDB",
		DatabaseURL:  "not set",
		DatabaseName: report.DatabaseName,
		Collections:  []string{},
	}
	if report.Configured {
		resp.DatabaseURL = "set"
	}

	switch {
	case report.Connected:
		resp.ConnectionStatus = "connected"
		resp.Collections = append(resp.Collections, report.Collections...)
	case report.Err != "":
		resp.ConnectionStatus = report.Err
	default:
		resp.ConnectionStatus = "not connected"
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
