package store

import (
	"context"
	"time"
)

// Settlement is the archived record of a listing's terminal transition.
// The archive is append-only history; the live listing table is in-memory
// and owned by the auction engine.
type Settlement struct {
	ID         string     `db:"id"`
	ListingID  string     `db:"listing_id"`
	SellerID   string     `db:"seller_id"`
	BuyerID    *string    `db:"buyer_id"`
	ItemKind   string     `db:"item_kind"`
	ItemCount  int        `db:"item_count"`
	SalePrice  *int64     `db:"sale_price"`
	Commission *int64     `db:"commission"`
	Outcome    string     `db:"outcome"` // "sold", "cancelled", "expired"
	SettledAt  time.Time  `db:"settled_at"`
}

// Settlement outcomes.
const (
	OutcomeSold      = "sold"
	OutcomeCancelled = "cancelled"
	OutcomeExpired   = "expired"
)

// SettlementRepository persists settlement records.
type SettlementRepository interface {
	Record(ctx context.Context, s *Settlement) error
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]Settlement, error)
	ListRecent(ctx context.Context, limit int) ([]Settlement, error)
}
