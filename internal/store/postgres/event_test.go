package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openrealms/auctionhouse/internal/event"
	"github.com/openrealms/auctionhouse/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	created, _ := json.Marshal(event.ListingCreatedData{
		SellerID: "s1", ItemKind: "iron sword", ItemCount: 1, StartingBid: 100,
	})
	bid, _ := json.Marshal(event.BidPlacedData{BidderID: "b1", Amount: 120})

	events := []event.Event{
		{AggregateID: "listing-1", Type: event.ListingCreated, Data: created, Version: 1},
		{AggregateID: "listing-1", Type: event.ListingBidPlaced, Data: bid, Version: 2},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	loaded, err := es.Load(ctx, "listing-1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load() = %d events, want 2", len(loaded))
	}
	if loaded[0].Type != event.ListingCreated || loaded[1].Type != event.ListingBidPlaced {
		t.Errorf("events out of version order: %v, %v", loaded[0].Type, loaded[1].Type)
	}
	if loaded[0].ID == "" || loaded[0].CreatedAt.IsZero() {
		t.Error("expected generated id and created_at")
	}

	var d event.BidPlacedData
	if err := json.Unmarshal(loaded[1].Data, &d); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if d.BidderID != "b1" || d.Amount != 120 {
		t.Errorf("payload = %+v, want b1 @ 120", d)
	}
}

func TestEventStore_AppendIsAtomic(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	data, _ := json.Marshal(event.CancelledData{SellerID: "s1"})
	ok := event.Event{AggregateID: "listing-2", Type: event.ListingCancelled, Data: data, Version: 1}
	dup := ok // same aggregate and version violates the unique constraint

	if err := es.Append(ctx, ok, dup); err == nil {
		t.Fatal("expected Append() to fail on duplicate version")
	}

	loaded, err := es.Load(ctx, "listing-2")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("partial append persisted %d events, want 0", len(loaded))
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	created, _ := json.Marshal(event.ListingCreatedData{SellerID: "s1", ItemKind: "shield", ItemCount: 1, StartingBid: 50})
	expired, _ := json.Marshal(event.ExpiredData{SellerID: "s1"})

	if err := es.Append(ctx,
		event.Event{AggregateID: "l1", Type: event.ListingCreated, Data: created, Version: 1},
		event.Event{AggregateID: "l2", Type: event.ListingCreated, Data: created, Version: 1},
		event.Event{AggregateID: "l1", Type: event.ListingExpired, Data: expired, Version: 2},
	); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	createds, err := es.LoadByType(ctx, event.ListingCreated)
	if err != nil {
		t.Fatalf("LoadByType() error: %v", err)
	}
	if len(createds) != 2 {
		t.Errorf("LoadByType(created) = %d events, want 2", len(createds))
	}
}
