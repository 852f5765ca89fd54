package economy

import (
	"context"
	"log/slog"
	"sync"
)

// Bank is an in-memory CurrencyLedger. Safe for concurrent use.
type Bank struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewBank returns an empty Bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]int64)}
}

// Deposit seeds a player's balance.
func (b *Bank) Deposit(playerID string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[playerID] += amount
}

// Balance returns a player's current balance.
func (b *Bank) Balance(playerID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[playerID]
}

// Debit implements CurrencyLedger.
func (b *Bank) Debit(_ context.Context, playerID string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[playerID] < amount {
		return ErrInsufficientFunds
	}
	b.balances[playerID] -= amount
	return nil
}

// Credit implements CurrencyLedger.
func (b *Bank) Credit(_ context.Context, playerID string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[playerID] += amount
	return nil
}

// Stockroom is an in-memory Inventory. Safe for concurrent use.
type Stockroom struct {
	mu    sync.Mutex
	items map[string]map[string]int // playerID -> itemKind -> count
}

// NewStockroom returns an empty Stockroom.
func NewStockroom() *Stockroom {
	return &Stockroom{items: make(map[string]map[string]int)}
}

// Put seeds a player's inventory.
func (s *Stockroom) Put(playerID, itemKind string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant(playerID, itemKind, count)
}

// Count returns how many of itemKind the player holds.
func (s *Stockroom) Count(playerID, itemKind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[playerID][itemKind]
}

// Remove implements Inventory.
func (s *Stockroom) Remove(_ context.Context, playerID, itemKind string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.items[playerID][itemKind]
	if held < count {
		return ErrInsufficientItems
	}
	s.items[playerID][itemKind] = held - count
	return nil
}

// Add implements Inventory.
func (s *Stockroom) Add(_ context.Context, playerID, itemKind string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant(playerID, itemKind, count)
	return nil
}

func (s *Stockroom) grant(playerID, itemKind string, count int) {
	if s.items[playerID] == nil {
		s.items[playerID] = make(map[string]int)
	}
	s.items[playerID][itemKind] += count
}

// LogNotifier is a Notifier that writes messages to the log. It stands in
// for the game-server mail/whisper channel.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, playerID, message string) {
	n.Logger.InfoContext(ctx, "player notification",
		slog.String("player_id", playerID),
		slog.String("message", message),
	)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, string, string) {}
