package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a player, stock, holding or watchlist
	// entry that an operation requires does not exist.
	ErrNotFound = errors.New("data not found")

	// ErrInvalidParameter is returned for non-positive quantities or prices,
	// empty identifiers and similar malformed input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDataDuplicated is returned when creating an entity that already exists.
	ErrDataDuplicated = errors.New("data duplicated")

	// ErrInsufficientFunds is returned when a buy would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientQuantity is returned when a sell exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrNotAuthenticated is returned when no acting player can be resolved.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSystem wraps anything unexpected from the ledger store.
	ErrSystem = errors.New("system error")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrInvalidParameter, "INVALID_PARAMETER"},
	{ErrDataDuplicated, "DATA_DUPLICATED"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrInsufficientQuantity, "INSUFFICIENT_QUANTITY"},
	{ErrNotAuthenticated, "NOT_AUTHENTICATED"},
	{ErrSystem, "SYSTEM_ERROR"},
}

// Code returns the stable error code for err. Untyped errors map to
// SYSTEM_ERROR; nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "SYSTEM_ERROR"
}

// AsSystem leaves typed errors untouched and wraps everything else in
// ErrSystem so callers always see a stable kind.
func AsSystem(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrSystem, err)
}
