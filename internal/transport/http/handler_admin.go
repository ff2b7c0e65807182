package httptransport

import (
	"encoding/json"
	"net/http"
	"strings"

	apppublic "teenpatti-casino/internal/app/public"
	"teenpatti-casino/internal/store"
)

type AdminHandlers struct {
	store     store.Backend
	publicSvc *apppublic.Service
}

func NewAdminHandlers(st store.Backend, publicSvc *apppublic.Service) *AdminHandlers {
	return &AdminHandlers{store: st, publicSvc: publicSvc}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Ledger(r.Context(), r.URL.Query().Get("user_id"), ParseLimit(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, resp)
	}
}

func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"user_id"`
			Amount int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.UserID = strings.TrimSpace(body.UserID)
		if body.UserID == "" || body.Amount <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.store.EnsureAccount(r.Context(), body.UserID, 0); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		bal, err := h.store.Credit(r.Context(), body.UserID, body.Amount, store.EntryTopup, store.RefTopup, store.NewID())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, map[string]any{"ok": true, "balance": bal})
	}
}

// Rooms lists or adds catalog rooms. New rooms are picked up by the
// matcher on the next server start.
func (h *AdminHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			items, err := h.store.ListRooms(r.Context())
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			WriteJSON(w, map[string]any{"items": items})
		case http.MethodPost:
			var body struct {
				Name       string `json:"name"`
				MinBet     int64  `json:"min_bet"`
				MaxBet     int64  `json:"max_bet"`
				BuyIn      int64  `json:"buy_in"`
				MaxPlayers int    `json:"max_players"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			body.Name = strings.TrimSpace(body.Name)
			if body.Name == "" || body.MinBet <= 0 || body.MaxBet < body.MinBet || body.BuyIn <= 0 ||
				body.MaxPlayers < 2 || body.MaxPlayers > 6 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			id, err := h.store.CreateRoom(r.Context(), store.Room{
				Name:       body.Name,
				MinBet:     body.MinBet,
				MaxBet:     body.MaxBet,
				BuyIn:      body.BuyIn,
				MaxPlayers: body.MaxPlayers,
				Status:     "active",
			})
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			WriteJSON(w, map[string]any{"ok": true, "room_id": id})
		default:
			WriteHTTPError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		}
	}
}
