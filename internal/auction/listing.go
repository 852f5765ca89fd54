package auction

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openrealms/auctionhouse/internal/event"
)

// Bid is a single bid in a listing's history. The history is append-only;
// the last entry is always the current high bid.
type Bid struct {
	BidderID string
	Amount   int64
	Time     time.Time
}

// Listing is the aggregate root for one item offered for sale. All
// reads-then-writes against a listing are serialized on mu; the store owns
// every Listing and hands out pointers, never copies.
type Listing struct {
	mu sync.Mutex

	ID          string
	SellerID    string
	ItemKind    string
	ItemCount   int
	StartingBid int64
	CurrentBid  int64
	BuyoutPrice int64 // 0 means no buyout
	// HighestBidder is empty until the first bid.
	HighestBidder string
	Bids          []Bid
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Version       int

	// removed marks the listing's terminal transition. It is the fence
	// that makes settlement idempotent: a second settle attempt observes
	// removed and becomes a no-op.
	removed bool

	// proceedsPaid records that the gold leg of settlement completed, so
	// a retry after a failed item delivery skips straight to the items.
	proceedsPaid bool

	// settlePending marks a listing whose settlement partially failed.
	// The sweep retries it ahead of its natural deadline.
	settlePending bool

	events []event.Event
}

func newListing(id, sellerID, itemKind string, itemCount int, startingBid, buyoutPrice int64, createdAt, expiresAt time.Time) *Listing {
	l := &Listing{
		ID:          id,
		SellerID:    sellerID,
		ItemKind:    itemKind,
		ItemCount:   itemCount,
		StartingBid: startingBid,
		CurrentBid:  startingBid,
		BuyoutPrice: buyoutPrice,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}

	data, _ := json.Marshal(event.ListingCreatedData{
		SellerID:    sellerID,
		ItemKind:    itemKind,
		ItemCount:   itemCount,
		StartingBid: startingBid,
		BuyoutPrice: buyoutPrice,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	})
	l.recordEvent(event.ListingCreated, data)
	return l
}

// applyBid records a validated bid. Caller holds mu.
func (l *Listing) applyBid(bidderID string, amount int64, at time.Time) {
	l.CurrentBid = amount
	l.HighestBidder = bidderID
	l.Bids = append(l.Bids, Bid{BidderID: bidderID, Amount: amount, Time: at})

	data, _ := json.Marshal(event.BidPlacedData{
		BidderID: bidderID,
		Amount:   amount,
		PlacedAt: at,
	})
	l.recordEvent(event.ListingBidPlaced, data)
}

// expired reports whether the listing's deadline has passed at now.
// Caller holds mu.
func (l *Listing) expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// previousBid returns the bid that the current high bid superseded.
// Caller holds mu.
func (l *Listing) previousBid() (Bid, bool) {
	if len(l.Bids) < 2 {
		return Bid{}, false
	}
	return l.Bids[len(l.Bids)-2], true
}

func (l *Listing) recordEvent(t event.Type, data json.RawMessage) {
	l.Version++
	l.events = append(l.events, event.Event{
		AggregateID: l.ID,
		Type:        t,
		Data:        data,
		Version:     l.Version,
	})
}

// pendingEvents returns uncommitted events and clears the buffer.
// Caller holds mu.
func (l *Listing) pendingEvents() []event.Event {
	events := l.events
	l.events = nil
	return events
}

// Snapshot is an immutable copy of a listing's state for callers outside
// the engine.
type Snapshot struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	ItemKind      string    `json:"item_kind"`
	ItemCount     int       `json:"item_count"`
	Category      string    `json:"category"`
	StartingBid   int64     `json:"starting_bid"`
	CurrentBid    int64     `json:"current_bid"`
	BuyoutPrice   int64     `json:"buyout_price,omitempty"`
	HighestBidder string    `json:"highest_bidder,omitempty"`
	BidCount      int       `json:"bid_count"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Snapshot returns a copy of the listing's current state.
func (l *Listing) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Listing) snapshotLocked() Snapshot {
	return Snapshot{
		ID:            l.ID,
		SellerID:      l.SellerID,
		ItemKind:      l.ItemKind,
		ItemCount:     l.ItemCount,
		Category:      Categorize(l.ItemKind),
		StartingBid:   l.StartingBid,
		CurrentBid:    l.CurrentBid,
		BuyoutPrice:   l.BuyoutPrice,
		HighestBidder: l.HighestBidder,
		BidCount:      len(l.Bids),
		CreatedAt:     l.CreatedAt,
		ExpiresAt:     l.ExpiresAt,
	}
}

// Categorize maps an item kind to its browse category.
func Categorize(itemKind string) string {
	kind := strings.ToLower(itemKind)
	switch {
	case strings.Contains(kind, "sword") || strings.Contains(kind, "axe") ||
		strings.Contains(kind, "bow") || strings.Contains(kind, "weapon"):
		return "weapons"
	case strings.Contains(kind, "armor") || strings.Contains(kind, "helm") ||
		strings.Contains(kind, "shield"):
		return "armor"
	case strings.Contains(kind, "horse") || strings.Contains(kind, "mount"):
		return "mounts"
	case strings.Contains(kind, "food") || strings.Contains(kind, "drink"):
		return "consumables"
	case strings.Contains(kind, "ore") || strings.Contains(kind, "ingot") ||
		strings.Contains(kind, "wood") || strings.Contains(kind, "hide"):
		return "materials"
	default:
		return "misc"
	}
}

// Replay reconstructs a listing from its event history. The returned
// listing has removed set when the history ends in a terminal event.
func Replay(events []event.Event) (*Listing, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}

	l := &Listing{}
	for _, e := range events {
		switch e.Type {
		case event.ListingCreated:
			var d event.ListingCreatedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling created event: %w", err)
			}
			l.ID = e.AggregateID
			l.SellerID = d.SellerID
			l.ItemKind = d.ItemKind
			l.ItemCount = d.ItemCount
			l.StartingBid = d.StartingBid
			l.CurrentBid = d.StartingBid
			l.BuyoutPrice = d.BuyoutPrice
			l.CreatedAt = d.CreatedAt
			l.ExpiresAt = d.ExpiresAt

		case event.ListingBidPlaced:
			var d event.BidPlacedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			l.CurrentBid = d.Amount
			l.HighestBidder = d.BidderID
			l.Bids = append(l.Bids, Bid{BidderID: d.BidderID, Amount: d.Amount, Time: d.PlacedAt})

		case event.ListingSold, event.ListingCancelled, event.ListingExpired:
			l.removed = true
		}
		l.Version = e.Version
	}

	if l.ID == "" {
		return nil, fmt.Errorf("history for %s has no created event", events[0].AggregateID)
	}
	return l, nil
}
