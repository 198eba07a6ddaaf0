package model

import "errors"

var (
	// ErrNotFound is returned when a lot or blob does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded transition lost a race.
	ErrConflict = errors.New("lot state changed concurrently")
	// ErrUnsupportedCurrency is returned when no chain reader serves a currency.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidLot          = errors.New("invalid lot")
	ErrForbidden           = errors.New("forbidden")
	ErrNotPaid             = errors.New("lot is not paid")
)

// ErrInvalidTransition is returned for a status change that is not an edge
// of the lot state machine.
var ErrInvalidTransition = errors.New("invalid lot status transition")
