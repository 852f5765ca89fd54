package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openrealms/auctionhouse/internal/store"
)

// SettlementRepo implements store.SettlementRepository with sqlx.
type SettlementRepo struct {
	db *sqlx.DB
}

// NewSettlementRepo returns a new SettlementRepo.
func NewSettlementRepo(db *sqlx.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

func (r *SettlementRepo) Record(ctx context.Context, s *store.Settlement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settlements (id, listing_id, seller_id, buyer_id, item_kind, item_count, sale_price, commission, outcome, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.ListingID, s.SellerID, s.BuyerID, s.ItemKind, s.ItemCount, s.SalePrice, s.Commission, s.Outcome, s.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("recording settlement for listing %s: %w", s.ListingID, err)
	}
	return nil
}

func (r *SettlementRepo) ListBySeller(ctx context.Context, sellerID string, limit int) ([]store.Settlement, error) {
	var settlements []store.Settlement
	err := r.db.SelectContext(ctx, &settlements,
		`SELECT * FROM settlements WHERE seller_id = $1 ORDER BY settled_at DESC LIMIT $2`,
		sellerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing settlements by seller: %w", err)
	}
	return settlements, nil
}

func (r *SettlementRepo) ListRecent(ctx context.Context, limit int) ([]store.Settlement, error) {
	var settlements []store.Settlement
	err := r.db.SelectContext(ctx, &settlements,
		`SELECT * FROM settlements ORDER BY settled_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent settlements: %w", err)
	}
	return settlements, nil
}
