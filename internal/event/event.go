package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	ListingCreated   Type = "listing.created"
	ListingBidPlaced Type = "listing.bid_placed"
	ListingSold      Type = "listing.sold"
	ListingCancelled Type = "listing.cancelled"
	ListingExpired   Type = "listing.expired"
)

// Event is a single journal entry for a listing aggregate. The journal is
// a recovery aid: open listings are rebuilt from it after a restart, while
// the in-memory store stays authoritative during operation.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ListingCreatedData is the payload for ListingCreated events.
type ListingCreatedData struct {
	SellerID    string    `json:"seller_id"`
	ItemKind    string    `json:"item_kind"`
	ItemCount   int       `json:"item_count"`
	StartingBid int64     `json:"starting_bid"`
	BuyoutPrice int64     `json:"buyout_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BidPlacedData is the payload for ListingBidPlaced events.
type BidPlacedData struct {
	BidderID string    `json:"bidder_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// SoldData is the payload for ListingSold events.
type SoldData struct {
	BuyerID    string `json:"buyer_id"`
	SalePrice  int64  `json:"sale_price"`
	Commission int64  `json:"commission"`
	Buyout     bool   `json:"buyout"`
}

// CancelledData is the payload for ListingCancelled events.
type CancelledData struct {
	SellerID string `json:"seller_id"`
}

// ExpiredData is the payload for ListingExpired events (no bids; item
// returned to the seller).
type ExpiredData struct {
	SellerID string `json:"seller_id"`
}
