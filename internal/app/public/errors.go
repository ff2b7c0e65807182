package public

import (
	"errors"

	"teenpatti-casino/internal/coordinator"
)

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrSessionNotFound = coordinator.ErrSessionNotFound
)
