package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openrealms/auctionhouse/internal/store"
	"github.com/openrealms/auctionhouse/internal/store/postgres"
)

func TestSettlementRepo_RecordAndList(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewSettlementRepo(db)
	ctx := context.Background()

	buyer := "b1"
	price := int64(200)
	commission := int64(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*store.Settlement{
		{
			ID: uuid.NewString(), ListingID: "l1", SellerID: "s1",
			BuyerID: &buyer, ItemKind: "iron sword", ItemCount: 1,
			SalePrice: &price, Commission: &commission,
			Outcome: store.OutcomeSold, SettledAt: base,
		},
		{
			ID: uuid.NewString(), ListingID: "l2", SellerID: "s1",
			ItemKind: "oak shield", ItemCount: 2,
			Outcome: store.OutcomeExpired, SettledAt: base.Add(time.Hour),
		},
		{
			ID: uuid.NewString(), ListingID: "l3", SellerID: "s2",
			ItemKind: "war horse", ItemCount: 1,
			Outcome: store.OutcomeCancelled, SettledAt: base.Add(2 * time.Hour),
		},
	}
	for _, r := range records {
		if err := repo.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error: %v", r.ListingID, err)
		}
	}

	mine, err := repo.ListBySeller(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("ListBySeller() error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("ListBySeller() = %d records, want 2", len(mine))
	}
	// Most recent first.
	if mine[0].ListingID != "l2" || mine[1].ListingID != "l1" {
		t.Errorf("order = %s, %s; want l2, l1", mine[0].ListingID, mine[1].ListingID)
	}
	if mine[1].SalePrice == nil || *mine[1].SalePrice != 200 {
		t.Errorf("sale price = %v, want 200", mine[1].SalePrice)
	}
	if mine[0].BuyerID != nil {
		t.Errorf("expired settlement has buyer %v, want none", *mine[0].BuyerID)
	}

	recent, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(recent) != 2 || recent[0].ListingID != "l3" {
		t.Errorf("ListRecent(2) = %+v, want l3 first", recent)
	}
}

func TestSettlementRepo_RejectsUnknownOutcome(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewSettlementRepo(db)

	err := repo.Record(context.Background(), &store.Settlement{
		ID: uuid.NewString(), ListingID: "l1", SellerID: "s1",
		ItemKind: "sword", ItemCount: 1,
		Outcome: "vanished", SettledAt: time.Now().UTC(),
	})
	if err == nil {
		t.Fatal("expected the outcome check constraint to reject the record")
	}
}
