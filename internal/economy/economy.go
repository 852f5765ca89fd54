// Package economy defines the narrow collaborator interfaces the auction
// engine settles against: the gold ledger, the item inventory, and player
// notification. The engine never implements these primitives itself; the
// in-memory implementations here back tests and single-process deployments.
package economy

import (
	"context"
	"errors"
)

// Errors surfaced by collaborators and passed through to callers untouched.
var (
	ErrInsufficientFunds = errors.New("insufficient gold")
	ErrInsufficientItems = errors.New("item not in inventory")
)

// CurrencyLedger credits and debits a player's live gold balance.
type CurrencyLedger interface {
	// Debit removes amount from the player's balance, failing with
	// ErrInsufficientFunds when the balance is short.
	Debit(ctx context.Context, playerID string, amount int64) error
	// Credit adds amount to the player's balance.
	Credit(ctx context.Context, playerID string, amount int64) error
}

// Inventory adds and removes item stacks from a player's inventory.
type Inventory interface {
	// Remove takes count of itemKind from the player, failing with
	// ErrInsufficientItems when the player does not hold that many.
	Remove(ctx context.Context, playerID, itemKind string, count int) error
	// Add gives count of itemKind to the player.
	Add(ctx context.Context, playerID, itemKind string, count int) error
}

// Notifier delivers a message to a player. Best-effort: delivery failure
// (player offline) is swallowed by implementations, never propagated.
type Notifier interface {
	Notify(ctx context.Context, playerID, message string)
}
