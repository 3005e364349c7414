// Package lock provides keyed mutual exclusion for trades. A trade locks the
// acting player's balance and the one holding row it mutates; trades that
// share no key run in parallel.
package lock

import (
	"context"
	"slices"
)

// Locker acquires exclusive access to a set of keys. The returned unlock
// releases all of them and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// PlayerKey names the lock guarding a player's balance.
func PlayerKey(playerID string) string {
	return "player:" + playerID
}

// HoldingKey names the lock guarding one (player, stock) holding row.
func HoldingKey(playerID, stockID string) string {
	return "holding:" + playerID + ":" + stockID
}

// normalize sorts and dedupes keys so every caller acquires in the same
// order and two overlapping key sets cannot deadlock.
func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
