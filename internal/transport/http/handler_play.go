package httptransport

import (
	"encoding/json"
	"net/http"
	"strings"

	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/game"

	"github.com/go-chi/chi/v5"
)

type PlayHandlers struct {
	coord *coordinator.Coordinator
}

func NewPlayHandlers(coord *coordinator.Coordinator) *PlayHandlers {
	return &PlayHandlers{coord: coord}
}

type joinRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type actionRequest struct {
	UserID string `json:"user_id"`
	Seat   *int   `json:"seat,omitempty"`
	Action string `json:"action"`
	Amount int64  `json:"amount,omitempty"`
}

func (h *PlayHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body joinRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.UserID = strings.TrimSpace(body.UserID)
		if body.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res, err := h.coord.Join(r.Context(), chi.URLParam(r, "room"), body.UserID, body.DisplayName)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, map[string]any{"ok": true, "room": res.Room, "position": res.Position, "balance": res.Balance})
	}
}

func (h *PlayHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body joinRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.UserID = strings.TrimSpace(body.UserID)
		if body.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.Leave(r.Context(), chi.URLParam(r, "room"), body.UserID); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, map[string]any{"ok": true})
	}
}

func (h *PlayHandlers) Act() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.UserID = strings.TrimSpace(body.UserID)
		if body.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		action, err := game.ParseAction(body.Action, body.Amount)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		seat := -1
		if body.Seat != nil {
			seat = *body.Seat
		}
		if err := h.coord.Act(r.Context(), chi.URLParam(r, "session_id"), body.UserID, seat, action); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, map[string]any{"accepted": true})
	}
}
