package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openrealms/auctionhouse/internal/event"
	"github.com/openrealms/auctionhouse/internal/store"
)

// PlaceBid escrows the bidder's gold and records a new high bid, refunding
// the outbid party in the same step. A bid on an expired but not yet swept
// listing is rejected rather than raced against the sweep.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount int64) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.PlaceBid",
		trace.WithAttributes(
			attribute.String("listing_id", listingID),
			attribute.String("bidder_id", bidderID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	if amount <= 0 {
		return Snapshot{}, ErrInvalidAmount
	}

	l, ok := e.store.Get(listingID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.removed {
		return Snapshot{}, ErrNotFound
	}
	if l.expired(e.clock.Now()) {
		return Snapshot{}, ErrAlreadyExpired
	}
	if bidderID == l.SellerID {
		return Snapshot{}, ErrSelfBidForbidden
	}
	// CurrentBid starts at the starting bid, so the first bid must beat
	// it too.
	if amount <= l.CurrentBid {
		return Snapshot{}, ErrBidTooLow
	}

	refunded, hadPrev, err := e.escrow.SwapGold(ctx, l.ID, bidderID, amount)
	if err != nil {
		return Snapshot{}, err
	}

	prev := l.HighestBidder
	l.applyBid(bidderID, amount, e.clock.Now())
	e.store.reindexBidder(l.ID, prev, bidderID)
	e.appendEvents(ctx, l.pendingEvents())
	e.bidsPlaced.Add(ctx, 1)

	e.logger.InfoContext(ctx, "bid placed",
		slog.String("listing_id", l.ID),
		slog.String("bidder_id", bidderID),
		slog.Int64("amount", amount),
	)
	e.notifier.Notify(ctx, l.SellerID, fmt.Sprintf("New bid of %d on your %s.", amount, l.ItemKind))
	if hadPrev && refunded.Party != bidderID {
		e.notifier.Notify(ctx, refunded.Party, fmt.Sprintf("You were outbid on %s; %d gold refunded.", l.ItemKind, refunded.Amount))
	}
	return l.snapshotLocked(), nil
}

// Buyout sells the listing to the buyer at the buyout price immediately,
// refunding the current high bidder if one exists.
func (e *Engine) Buyout(ctx context.Context, listingID, buyerID string) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Buyout",
		trace.WithAttributes(
			attribute.String("listing_id", listingID),
			attribute.String("buyer_id", buyerID),
		),
	)
	defer span.End()

	l, ok := e.store.Get(listingID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.removed {
		return Snapshot{}, ErrNotFound
	}
	if l.expired(e.clock.Now()) {
		return Snapshot{}, ErrAlreadyExpired
	}
	if l.BuyoutPrice == 0 {
		return Snapshot{}, ErrNoBuyoutAvailable
	}
	if buyerID == l.SellerID {
		return Snapshot{}, ErrSelfBidForbidden
	}

	if err := e.settleLocked(ctx, l, buyerID, l.BuyoutPrice, true); err != nil {
		return Snapshot{}, err
	}
	return l.snapshotLocked(), nil
}

// Cancel withdraws a listing that has attracted no bids and returns the
// escrowed items to the seller.
func (e *Engine) Cancel(ctx context.Context, listingID, sellerID string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Cancel",
		trace.WithAttributes(
			attribute.String("listing_id", listingID),
			attribute.String("seller_id", sellerID),
		),
	)
	defer span.End()

	l, ok := e.store.Get(listingID)
	if !ok {
		return ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.removed {
		return ErrNotFound
	}
	if sellerID != l.SellerID {
		return ErrUnauthorized
	}
	if l.HighestBidder != "" {
		return ErrHasActiveBid
	}

	if _, _, err := e.escrow.ReleaseItems(ctx, l.ID); err != nil {
		return fmt.Errorf("%w: returning items: %v", ErrSettlementFailed, err)
	}

	l.removed = true
	data, _ := json.Marshal(event.CancelledData{SellerID: l.SellerID})
	l.recordEvent(event.ListingCancelled, data)
	e.store.Remove(l.ID)
	e.schedule.Drop(l.ID)
	e.appendEvents(ctx, l.pendingEvents())
	e.recordSettlement(ctx, &store.Settlement{
		ID:        uuid.NewString(),
		ListingID: l.ID,
		SellerID:  l.SellerID,
		ItemKind:  l.ItemKind,
		ItemCount: l.ItemCount,
		Outcome:   store.OutcomeCancelled,
		SettledAt: e.clock.Now(),
	})

	e.logger.InfoContext(ctx, "listing cancelled",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", l.SellerID),
	)
	e.notifier.Notify(ctx, l.SellerID, fmt.Sprintf("Your listing for %s was cancelled; items returned.", l.ItemKind))
	return nil
}
