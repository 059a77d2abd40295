package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/domain"
)

type ConnectionReader interface {
	GetConnection(ctx context.Context, id string) (domain.ConnectionView, error)
}

type Syncer interface {
	Sync(ctx context.Context, connectionID string) (domain.SyncResult, error)
	Reply(ctx context.Context, reviewID, text string) error
}

type Handlers struct {
	Q ConnectionReader
	S Syncer
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type replyRequest struct {
	Text string `json:"text"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/connections/{id}", h.getConnection)
	s.mux.Post("/v1/connections/{id}/sync", h.syncConnection)
	s.mux.Post("/v1/reviews/{id}/reply", h.replyToReview)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps domain failures onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var te *domain.TokenError
	var pe *domain.ProviderAPIError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrSyncInProgress):
		writeProblem(w, http.StatusConflict, "Sync In Progress", err.Error())
	case errors.Is(err, domain.ErrRepliesUnsupported), errors.Is(err, domain.ErrUnsupportedPlatform):
		writeProblem(w, http.StatusUnprocessableEntity, "Unsupported", err.Error())
	case errors.As(err, &te), errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized:
		writeProblem(w, http.StatusUnauthorized, "Reconnect Required", "reconnect_required")
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", err.Error())
	default:
		writeProblem(w, http.StatusBadGateway, "Sync Failed", err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func (h *Handlers) getConnection(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Q.GetConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "connection not found")
			return
		}
		observability.Ctx(r.Context()).Error().Err(err).Msg("get connection failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		observability.Ctx(r.Context()).Error().Err(err).Msg("failed to write getConnection body")
	}
}

func (h *Handlers) syncConnection(w http.ResponseWriter, r *http.Request) {
	res, err := h.S.Sync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) replyToReview(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "expected JSON {\"text\": ...}")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "text must not be empty")
		return
	}
	if err := h.S.Reply(r.Context(), chi.URLParam(r, "id"), text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
