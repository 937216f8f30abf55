package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/afterflow/internal/links"
	"github.com/JonMunkholm/afterflow/internal/metadata"
)

const maxClassifyBody = 16 << 10

// linkResponse describes a classified link.
type linkResponse struct {
	links.Classification
	ProviderName   string `json:"provider_name"`
	OEmbedEndpoint string `json:"oembed_endpoint,omitempty"`
	FallbackTitle  string `json:"fallback_title,omitempty"`
}

func newLinkResponse(c links.Classification) linkResponse {
	resp := linkResponse{
		Classification: c,
		ProviderName:   c.Provider.DisplayName(),
	}
	if endpoint, ok := links.OEmbedEndpoint(c); ok {
		resp.OEmbedEndpoint = endpoint
	}
	if title, ok := links.FallbackTitle(c); ok {
		resp.FallbackTitle = title
	}
	return resp
}

// handleClassifyLink classifies a pasted music link.
//
//	POST /api/links/classify  {"url": "spotify:playlist:..."}
func (s *Server) handleClassifyLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClassifyBody)).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	c, err := links.Parse(req.URL)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, newLinkResponse(c))
}

// previewResponse is a classified link plus its display metadata.
type previewResponse struct {
	linkResponse
	Metadata metadata.Metadata `json:"metadata"`
}

// handlePreviewLink resolves display metadata for a link. Metadata falls back
// to the title inferred from the URL when no oEmbed answer is available.
//
//	GET /api/links/preview?url=https://youtu.be/dQw4w9WgXcQ
func (s *Server) handlePreviewLink(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		respondError(w, r, errors.New("missing url parameter"), http.StatusBadRequest)
		return
	}

	c, err := links.Parse(raw)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		linkResponse: newLinkResponse(c),
		Metadata:     s.fetcher.Resolve(r.Context(), c),
	})
}
