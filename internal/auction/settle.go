package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/openrealms/auctionhouse/internal/escrow"
	"github.com/openrealms/auctionhouse/internal/event"
	"github.com/openrealms/auctionhouse/internal/store"
)

// settleRetryDelay is how long a listing waits in the schedule after a
// partial settlement before the sweep retries it.
const settleRetryDelay = 5 * time.Second

// settleLocked completes the sale of l to buyerID at salePrice. Caller
// holds l.mu and has already validated the transition.
//
// The transfer runs in two legs: gold to the seller (minus commission),
// then items to the buyer. Each leg is individually retryable; a failure
// leaves the listing in the store, its escrow holds intact, and a retry
// deadline in the schedule. The proceedsPaid flag keeps a retry from
// paying the seller twice.
func (e *Engine) settleLocked(ctx context.Context, l *Listing, buyerID string, salePrice int64, buyout bool) error {
	if !l.proceedsPaid {
		// Buyout pays through the same escrow path as a settled bid: if
		// the hold is not already the buyer's at the sale price, swap it
		// in, refunding whoever was outbid.
		if h, ok := e.escrow.GoldHeld(l.ID); !ok || h.Party != buyerID || h.Amount != salePrice {
			if _, _, err := e.escrow.SwapGold(ctx, l.ID, buyerID, salePrice); err != nil {
				return err
			}
		}
		if l.HighestBidder != buyerID || l.CurrentBid != salePrice {
			prev := l.HighestBidder
			l.applyBid(buyerID, salePrice, e.clock.Now())
			e.store.reindexBidder(l.ID, prev, buyerID)
		}

		commission := salePrice * e.commissionBps / 10000
		if _, err := e.escrow.DisburseGold(ctx, l.ID, l.SellerID, salePrice-commission); err != nil {
			l.settlePending = true
			e.appendEvents(ctx, l.pendingEvents())
			e.schedule.Add(l.ID, e.clock.Now().Add(settleRetryDelay))
			return fmt.Errorf("%w: paying seller: %v", ErrSettlementFailed, err)
		}
		l.proceedsPaid = true
	}

	if _, err := e.escrow.DisburseItems(ctx, l.ID, buyerID); err != nil {
		l.settlePending = true
		e.appendEvents(ctx, l.pendingEvents())
		e.schedule.Add(l.ID, e.clock.Now().Add(settleRetryDelay))
		return fmt.Errorf("%w: delivering items: %v", ErrSettlementFailed, err)
	}

	commission := salePrice * e.commissionBps / 10000
	l.removed = true
	data, _ := json.Marshal(event.SoldData{
		BuyerID:    buyerID,
		SalePrice:  salePrice,
		Commission: commission,
		Buyout:     buyout,
	})
	l.recordEvent(event.ListingSold, data)
	e.store.Remove(l.ID)
	e.schedule.Drop(l.ID)
	e.appendEvents(ctx, l.pendingEvents())
	e.listingsSettled.Add(ctx, 1, metric.WithAttributes(attribute.Bool("buyout", buyout)))
	e.recordSettlement(ctx, &store.Settlement{
		ID:         uuid.NewString(),
		ListingID:  l.ID,
		SellerID:   l.SellerID,
		BuyerID:    &buyerID,
		ItemKind:   l.ItemKind,
		ItemCount:  l.ItemCount,
		SalePrice:  &salePrice,
		Commission: &commission,
		Outcome:    store.OutcomeSold,
		SettledAt:  e.clock.Now(),
	})

	e.logger.InfoContext(ctx, "listing sold",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", l.SellerID),
		slog.String("buyer_id", buyerID),
		slog.Int64("sale_price", salePrice),
		slog.Int64("commission", commission),
		slog.Bool("buyout", buyout),
	)
	e.notifier.Notify(ctx, l.SellerID, fmt.Sprintf("Your %s sold for %d gold (%d commission).", l.ItemKind, salePrice, commission))
	e.notifier.Notify(ctx, buyerID, fmt.Sprintf("You won %d x %s for %d gold.", l.ItemCount, l.ItemKind, salePrice))
	return nil
}

// settleExpired resolves one listing the schedule reported as due. Ids
// that were settled or cancelled since are ignored; a listing whose
// deadline moved is put back in the schedule.
func (e *Engine) settleExpired(ctx context.Context, listingID string) error {
	l, ok := e.store.Get(listingID)
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.removed {
		return nil
	}
	now := e.clock.Now()
	if !l.settlePending && !l.expired(now) {
		e.schedule.Add(l.ID, l.ExpiresAt)
		return nil
	}

	if l.HighestBidder != "" {
		return e.settleLocked(ctx, l, l.HighestBidder, l.CurrentBid, false)
	}

	// No bids: the stack goes home.
	if _, _, err := e.escrow.ReleaseItems(ctx, l.ID); err != nil {
		e.schedule.Add(l.ID, now.Add(settleRetryDelay))
		return fmt.Errorf("%w: returning items: %v", ErrSettlementFailed, err)
	}

	l.removed = true
	data, _ := json.Marshal(event.ExpiredData{SellerID: l.SellerID})
	l.recordEvent(event.ListingExpired, data)
	e.store.Remove(l.ID)
	e.appendEvents(ctx, l.pendingEvents())
	e.expiredUnsold.Add(ctx, 1)
	e.recordSettlement(ctx, &store.Settlement{
		ID:        uuid.NewString(),
		ListingID: l.ID,
		SellerID:  l.SellerID,
		ItemKind:  l.ItemKind,
		ItemCount: l.ItemCount,
		Outcome:   store.OutcomeExpired,
		SettledAt: now,
	})

	e.logger.InfoContext(ctx, "listing expired unsold",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", l.SellerID),
	)
	e.notifier.Notify(ctx, l.SellerID, fmt.Sprintf("Your listing for %s expired; items returned.", l.ItemKind))
	return nil
}

// Sweep settles every listing whose deadline has passed. It returns how
// many listings reached a terminal state; failures are joined and the
// affected listings stay scheduled for retry.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Sweep")
	defer span.End()

	now := e.clock.Now()
	due := e.schedule.Due(now)
	span.SetAttributes(attribute.Int("due", len(due)))

	var (
		settled int
		errs    []error
	)
	for _, id := range due {
		if err := e.settleExpired(ctx, id); err != nil {
			e.logger.ErrorContext(ctx, "sweep failed to settle listing",
				slog.String("listing_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("listing %s: %w", id, err))
			continue
		}
		settled++
	}
	e.lastSweep.Store(now.UnixNano())

	if len(due) > 0 {
		e.logger.InfoContext(ctx, "sweep completed",
			slog.Int("due", len(due)),
			slog.Int("settled", settled),
			slog.Int("failed", len(errs)),
		)
	}
	return settled, errors.Join(errs...)
}

// LastSweep returns when the most recent sweep ran, zero before the first.
func (e *Engine) LastSweep() time.Time {
	ns := e.lastSweep.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Recover rebuilds the in-memory listing table from the event journal.
// It replays each listing's history, re-inserts the ones that never
// reached a terminal event, restores their escrow holds without moving
// any gold or items, and reschedules their deadlines. Listings already
// past their deadline are picked up by the first sweep.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Recover")
	defer span.End()

	created, err := e.journal.LoadByType(ctx, event.ListingCreated)
	if err != nil {
		return 0, fmt.Errorf("loading created events: %w", err)
	}

	seen := make(map[string]struct{}, len(created))
	var recovered int
	for _, c := range created {
		if _, dup := seen[c.AggregateID]; dup {
			continue
		}
		seen[c.AggregateID] = struct{}{}

		history, err := e.journal.Load(ctx, c.AggregateID)
		if err != nil {
			return recovered, fmt.Errorf("loading history for %s: %w", c.AggregateID, err)
		}
		l, err := Replay(history)
		if err != nil {
			e.logger.ErrorContext(ctx, "skipping unreplayable listing",
				slog.String("listing_id", c.AggregateID), slog.Any("error", err))
			continue
		}
		if l.removed {
			continue
		}

		if err := e.store.Insert(l, e.maxPerSeller); err != nil {
			e.logger.ErrorContext(ctx, "skipping listing rejected on recovery",
				slog.String("listing_id", l.ID), slog.Any("error", err))
			continue
		}

		itemHold := &escrow.ItemHold{Party: l.SellerID, Kind: l.ItemKind, Count: l.ItemCount}
		var goldHold *escrow.GoldHold
		if l.HighestBidder != "" {
			goldHold = &escrow.GoldHold{Party: l.HighestBidder, Amount: l.CurrentBid}
			e.store.reindexBidder(l.ID, "", l.HighestBidder)
		}
		e.escrow.Restore(l.ID, goldHold, itemHold)
		e.schedule.Add(l.ID, l.ExpiresAt)
		recovered++
	}

	e.logger.InfoContext(ctx, "recovery completed",
		slog.Int("histories", len(seen)),
		slog.Int("recovered", recovered),
	)
	return recovered, nil
}

func (e *Engine) recordSettlement(ctx context.Context, s *store.Settlement) {
	if err := e.archive.Record(ctx, s); err != nil {
		e.logger.ErrorContext(ctx, "failed to archive settlement",
			slog.String("listing_id", s.ListingID),
			slog.String("outcome", s.Outcome),
			slog.Any("error", err))
	}
}
