package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openrealms/auctionhouse/internal/store"
)

// SettlementRepo implements store.SettlementRepository using database/sql.
type SettlementRepo struct {
	db *sql.DB
}

// NewSettlementRepo returns a new SettlementRepo.
func NewSettlementRepo(db *sql.DB) *SettlementRepo {
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, seller_id, buyer_id, item_kind, item_count, sale_price, commission, outcome, settled_at
		 FROM settlements WHERE seller_id = $1 ORDER BY settled_at DESC LIMIT $2`,
		sellerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing settlements by seller: %w", err)
	}
	defer rows.Close()
	return scanSettlements(rows)
}

func (r *SettlementRepo) ListRecent(ctx context.Context, limit int) ([]store.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, seller_id, buyer_id, item_kind, item_count, sale_price, commission, outcome, settled_at
		 FROM settlements ORDER BY settled_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent settlements: %w", err)
	}
	defer rows.Close()
	return scanSettlements(rows)
}

func scanSettlements(rows *sql.Rows) ([]store.Settlement, error) {
	var settlements []store.Settlement
	for rows.Next() {
		var s store.Settlement
		if err := rows.Scan(&s.ID, &s.ListingID, &s.SellerID, &s.BuyerID, &s.ItemKind, &s.ItemCount,
			&s.SalePrice, &s.Commission, &s.Outcome, &s.SettledAt); err != nil {
			return nil, fmt.Errorf("scanning settlement row: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}
