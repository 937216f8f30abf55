package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/logging"
)

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status        string                   `json:"status"`
	Database      string                   `json:"database"`
	Imports       core.ImportLimiterStatus `json:"imports"`
	Metadata      bool                     `json:"metadata_enabled"`
	MetadataCache int                      `json:"metadata_cache"`
}

// handleHealth reports store reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Database:      "ok",
		Imports:       s.service.Limiter().Status(),
		Metadata:      s.fetcher != nil,
		MetadataCache: s.fetcher.CacheLen(),
	}
	status := http.StatusOK

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		resp.Status = "unavailable"
		resp.Database = core.MapError(err).Code
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
