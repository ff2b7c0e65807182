package mcpserver

import (
	"strings"

	"teenpatti-casino/internal/game"
)

const maxLedgerLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxLedgerLimit {
		return maxLedgerLimit
	}
	return limit
}

// seatArg maps a negative seat to the caller's own seat.
func seatArg(v float64) int {
	if v < 0 {
		return -1
	}
	return int(v)
}

func isAllowedAction(v string) bool {
	switch game.ActionKind(strings.ToLower(strings.TrimSpace(v))) {
	case game.ActionFold, game.ActionCall, game.ActionRaise:
		return true
	}
	return false
}
