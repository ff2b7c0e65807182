package httptransport

import (
	"errors"
	"net/http"

	apppublic "teenpatti-casino/internal/app/public"
	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/stream"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type PublicHandlers struct {
	publicSvc *apppublic.Service
	hub       *stream.Hub
}

func NewPublicHandlers(publicSvc *apppublic.Service, hub *stream.Hub) *PublicHandlers {
	return &PublicHandlers{publicSvc: publicSvc, hub: hub}
}

func (h *PublicHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Rooms(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, resp)
	}
}

func (h *PublicHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Sessions(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, resp)
	}
}

func (h *PublicHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Session(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, resp)
	}
}

func (h *PublicHandlers) Player() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Player(r.Context(), chi.URLParam(r, "user_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, resp)
	}
}

// SessionEvents streams the shared events of one live session.
func (h *PublicHandlers) SessionEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		buf, ok := h.hub.SessionBuffer(sessionID)
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "session_not_found")
			return
		}
		h.serveStream(w, r, buf, sessionID)
	}
}

// PlayerEvents streams everything addressed to one user, private hands
// included.
func (h *PublicHandlers) PlayerEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		h.serveStream(w, r, h.hub.UserBuffer(userID), "")
	}
}

func (h *PublicHandlers) serveStream(w http.ResponseWriter, r *http.Request, buf *stream.EventBuffer, sessionID string) {
	metricSSEConnectionsTotal.Add(1)
	metricSSEConnectionsActive.Add(1)
	defer metricSSEConnectionsActive.Add(-1)
	if err := stream.Serve(w, r, buf, sessionID); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("event stream unavailable")
		WriteHTTPError(w, http.StatusInternalServerError, "streaming_unsupported")
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, apppublic.ErrInvalidRequest) {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	status, code := coordinator.MapError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	WriteHTTPError(w, status, code)
}
