// Package escrow tracks gold and items that have been withdrawn from a
// party's live balance and are pending settlement. Every hold is keyed by
// the listing it backs: a listing has at most one gold hold (the current
// high bid) and at most one item hold (the stack being sold).
package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/openrealms/auctionhouse/internal/economy"
)

// GoldHold is escrowed gold backing a listing's current high bid.
type GoldHold struct {
	Party  string
	Amount int64
}

// ItemHold is the escrowed item stack of an active listing.
type ItemHold struct {
	Party string
	Kind  string
	Count int
}

// Ledger is the escrow ledger. All operations are atomic with respect to
// each other; callers serialize per listing at a higher level.
type Ledger struct {
	mu        sync.Mutex
	currency  economy.CurrencyLedger
	inventory economy.Inventory
	gold      map[string]GoldHold
	items     map[string]ItemHold
}

// NewLedger returns an empty Ledger moving funds through the given
// collaborators.
func NewLedger(currency economy.CurrencyLedger, inventory economy.Inventory) *Ledger {
	return &Ledger{
		currency:  currency,
		inventory: inventory,
		gold:      make(map[string]GoldHold),
		items:     make(map[string]ItemHold),
	}
}

// SwapGold debits amount from party into the listing's gold hold and
// refunds the previous holder, if any, in the same atomic step. On any
// collaborator failure no hold changes and no net gold moves.
func (l *Ledger) SwapGold(ctx context.Context, listingID, party string, amount int64) (refunded GoldHold, hadPrev bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.currency.Debit(ctx, party, amount); err != nil {
		return GoldHold{}, false, err
	}

	prev, hadPrev := l.gold[listingID]
	if hadPrev {
		if err := l.currency.Credit(ctx, prev.Party, prev.Amount); err != nil {
			// Undo the debit so the failed swap leaves no trace.
			if undoErr := l.currency.Credit(ctx, party, amount); undoErr != nil {
				return GoldHold{}, false, fmt.Errorf("refunding outbid party %s: %w (undo also failed: %v)", prev.Party, err, undoErr)
			}
			return GoldHold{}, false, fmt.Errorf("refunding outbid party %s: %w", prev.Party, err)
		}
	}

	l.gold[listingID] = GoldHold{Party: party, Amount: amount}
	return prev, hadPrev, nil
}

// ReleaseGold refunds the listing's gold hold to its holder and clears it.
// Releasing a listing with no gold hold is a no-op.
func (l *Ledger) ReleaseGold(ctx context.Context, listingID string) (GoldHold, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.gold[listingID]
	if !ok {
		return GoldHold{}, false, nil
	}
	if err := l.currency.Credit(ctx, h.Party, h.Amount); err != nil {
		return GoldHold{}, false, fmt.Errorf("refunding %s: %w", h.Party, err)
	}
	delete(l.gold, listingID)
	return h, true, nil
}

// DisburseGold pays amount of the listing's gold hold to the given party
// and clears the hold. The remainder of the hold is retained by the house
// (the commission) and tracked no further. On failure the hold is kept so
// the settlement can be retried.
func (l *Ledger) DisburseGold(ctx context.Context, listingID, to string, amount int64) (GoldHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.gold[listingID]
	if !ok {
		return GoldHold{}, fmt.Errorf("no gold held for listing %s", listingID)
	}
	if amount > h.Amount {
		return GoldHold{}, fmt.Errorf("disbursing %d exceeds hold of %d for listing %s", amount, h.Amount, listingID)
	}
	if err := l.currency.Credit(ctx, to, amount); err != nil {
		return GoldHold{}, fmt.Errorf("crediting %s: %w", to, err)
	}
	delete(l.gold, listingID)
	return h, nil
}

// HoldItems moves count of itemKind from the party's inventory into the
// listing's item hold.
func (l *Ledger) HoldItems(ctx context.Context, listingID, party, itemKind string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.items[listingID]; exists {
		return fmt.Errorf("items already held for listing %s", listingID)
	}
	if err := l.inventory.Remove(ctx, party, itemKind, count); err != nil {
		return err
	}
	l.items[listingID] = ItemHold{Party: party, Kind: itemKind, Count: count}
	return nil
}

// ReleaseItems returns the listing's item hold to its original holder.
func (l *Ledger) ReleaseItems(ctx context.Context, listingID string) (ItemHold, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.items[listingID]
	if !ok {
		return ItemHold{}, false, nil
	}
	if err := l.inventory.Add(ctx, h.Party, h.Kind, h.Count); err != nil {
		return ItemHold{}, false, fmt.Errorf("returning items to %s: %w", h.Party, err)
	}
	delete(l.items, listingID)
	return h, true, nil
}

// DisburseItems delivers the listing's item hold to the buyer and clears
// it. On failure the hold is kept for retry.
func (l *Ledger) DisburseItems(ctx context.Context, listingID, to string) (ItemHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.items[listingID]
	if !ok {
		return ItemHold{}, fmt.Errorf("no items held for listing %s", listingID)
	}
	if err := l.inventory.Add(ctx, to, h.Kind, h.Count); err != nil {
		return ItemHold{}, fmt.Errorf("delivering items to %s: %w", to, err)
	}
	delete(l.items, listingID)
	return h, nil
}

// Restore records holds without moving any gold or items. Used when
// rebuilding in-memory state from the journal: the collaborator balances
// already reflect the holds.
func (l *Ledger) Restore(listingID string, gold *GoldHold, items *ItemHold) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gold != nil {
		l.gold[listingID] = *gold
	}
	if items != nil {
		l.items[listingID] = *items
	}
}

// GoldHeld returns the listing's gold hold, if any.
func (l *Ledger) GoldHeld(listingID string) (GoldHold, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.gold[listingID]
	return h, ok
}

// ItemsHeld returns the listing's item hold, if any.
func (l *Ledger) ItemsHeld(listingID string) (ItemHold, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.items[listingID]
	return h, ok
}

// OutstandingGold is the total gold currently in escrow across all
// listings. The engine's invariant: this equals the sum of current bids of
// listings that have a bidder.
func (l *Ledger) OutstandingGold() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, h := range l.gold {
		total += h.Amount
	}
	return total
}

// OutstandingItems is the total number of items currently in escrow.
func (l *Ledger) OutstandingItems() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int
	for _, h := range l.items {
		total += h.Count
	}
	return total
}
