package coordinator

import (
	"errors"
	"net/http"

	"teenpatti-casino/internal/game"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/lobby"
)

var (
	ErrSessionNotFound   = errors.New("session_not_found")
	ErrActionPending     = errors.New("action_pending")
	ErrSettlementFailed  = errors.New("settlement_failed")
	ErrJoinCancelled     = errors.New("join_cancelled")
	ErrCoordinatorClosed = errors.New("coordinator_closed")
	ErrInternal          = errors.New("internal_error")
)

// MapError turns a coordinator error into an HTTP status and a stable code.
func MapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, game.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, game.ErrDeckExhausted):
		return http.StatusInternalServerError, "deck_exhausted"
	case errors.Is(err, lobby.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, game.ErrSessionClosed):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, lobby.ErrAlreadyQueued):
		return http.StatusConflict, "already_joined"
	case errors.Is(err, ErrActionPending):
		return http.StatusConflict, "action_pending"
	case errors.Is(err, ErrSettlementFailed):
		return http.StatusServiceUnavailable, "settlement_failed"
	case errors.Is(err, lobby.ErrQueueFull):
		return http.StatusTooManyRequests, "queue_full"
	case errors.Is(err, ErrJoinCancelled):
		return http.StatusConflict, "join_cancelled"
	case errors.Is(err, ErrCoordinatorClosed):
		return http.StatusServiceUnavailable, "coordinator_closed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
