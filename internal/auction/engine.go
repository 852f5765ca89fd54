// Package auction implements the marketplace settlement engine: listing
// lifecycle, bid escrow, buyout, expiry sweeps and crash recovery. The
// in-memory listing table is authoritative while the process runs; the
// event journal exists so open listings survive a restart.
package auction

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/openrealms/auctionhouse/internal/clock"
	"github.com/openrealms/auctionhouse/internal/config"
	"github.com/openrealms/auctionhouse/internal/economy"
	"github.com/openrealms/auctionhouse/internal/escrow"
	"github.com/openrealms/auctionhouse/internal/event"
	"github.com/openrealms/auctionhouse/internal/store"
)

// Engine coordinates the auction house. All mutations of a listing happen
// under that listing's own lock; the Engine itself holds no lock across
// collaborator calls.
type Engine struct {
	commissionBps int64
	maxPerSeller  int
	defaultTTL    time.Duration
	maxTTL        time.Duration

	store    *Store
	schedule *ExpirySchedule
	escrow   *escrow.Ledger
	journal  event.Store
	archive  store.SettlementRepository
	notifier economy.Notifier

	logger *slog.Logger
	tracer trace.Tracer
	clock  clock.Clock

	bidsPlaced      metric.Int64Counter
	listingsSettled metric.Int64Counter
	expiredUnsold   metric.Int64Counter

	lastSweep atomic.Int64
}

// New returns an Engine with an empty listing table.
func New(cfg config.AuctionConfig, ledger *escrow.Ledger, journal event.Store, archive store.SettlementRepository, notifier economy.Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Engine {
	meter := otel.Meter("github.com/openrealms/auctionhouse/internal/auction")
	bidsPlaced, _ := meter.Int64Counter("auction.bids.placed")
	listingsSettled, _ := meter.Int64Counter("auction.listings.settled")
	expiredUnsold, _ := meter.Int64Counter("auction.listings.expired_unsold")

	return &Engine{
		commissionBps: int64(math.Round(cfg.CommissionRate * 10000)),
		maxPerSeller:  cfg.MaxListingsPerSeller,
		defaultTTL:    cfg.DefaultTTL.Std(),
		maxTTL:        cfg.MaxTTL.Std(),
		store:         NewStore(),
		schedule:      NewExpirySchedule(),
		escrow:        ledger,
		journal:       journal,
		archive:       archive,
		notifier:      notifier,
		logger:        logger,
		tracer:        tp.Tracer("github.com/openrealms/auctionhouse/internal/auction"),
		clock:         clk,

		bidsPlaced:      bidsPlaced,
		listingsSettled: listingsSettled,
		expiredUnsold:   expiredUnsold,
	}
}

// CreateParams are the seller-supplied parameters of a new listing.
type CreateParams struct {
	SellerID    string
	ItemKind    string
	ItemCount   int
	StartingBid int64
	// BuyoutPrice of 0 means the listing has no buyout.
	BuyoutPrice int64
	// TTL of 0 means the configured default. TTLs above the configured
	// maximum are clamped, not rejected.
	TTL time.Duration
}

func (p CreateParams) validate() error {
	if p.SellerID == "" || p.ItemKind == "" {
		return ErrInvalidAmount
	}
	if p.ItemCount <= 0 || p.StartingBid <= 0 {
		return ErrInvalidAmount
	}
	if p.BuyoutPrice < 0 || (p.BuyoutPrice > 0 && p.BuyoutPrice <= p.StartingBid) {
		return ErrInvalidAmount
	}
	if p.TTL < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Create escrows the seller's item stack and opens a listing for it.
func (e *Engine) Create(ctx context.Context, p CreateParams) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Create",
		trace.WithAttributes(
			attribute.String("seller_id", p.SellerID),
			attribute.String("item_kind", p.ItemKind),
			attribute.Int("item_count", p.ItemCount),
		),
	)
	defer span.End()

	if err := p.validate(); err != nil {
		return Snapshot{}, err
	}

	ttl := p.TTL
	if ttl == 0 {
		ttl = e.defaultTTL
	}
	if ttl > e.maxTTL {
		ttl = e.maxTTL
	}

	id := uuid.NewString()
	now := e.clock.Now()

	// The item stack enters escrow before the listing exists, so a
	// listed stack is never simultaneously spendable from inventory.
	if err := e.escrow.HoldItems(ctx, id, p.SellerID, p.ItemKind, p.ItemCount); err != nil {
		return Snapshot{}, err
	}

	l := newListing(id, p.SellerID, p.ItemKind, p.ItemCount, p.StartingBid, p.BuyoutPrice, now, now.Add(ttl))
	if err := e.store.Insert(l, e.maxPerSeller); err != nil {
		if _, _, relErr := e.escrow.ReleaseItems(ctx, id); relErr != nil {
			e.logger.ErrorContext(ctx, "failed to return items after rejected listing",
				slog.String("listing_id", id), slog.Any("error", relErr))
		}
		return Snapshot{}, err
	}
	e.schedule.Add(id, l.ExpiresAt)

	l.mu.Lock()
	e.appendEvents(ctx, l.pendingEvents())
	snap := l.snapshotLocked()
	l.mu.Unlock()

	e.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", id),
		slog.String("seller_id", p.SellerID),
		slog.String("item_kind", p.ItemKind),
		slog.Int64("starting_bid", p.StartingBid),
		slog.Time("expires_at", snap.ExpiresAt),
	)
	return snap, nil
}

// Get returns the current state of an active listing.
func (e *Engine) Get(ctx context.Context, listingID string) (Snapshot, error) {
	l, ok := e.store.Get(listingID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return l.Snapshot(), nil
}

// BrowseFilter narrows a Browse call. Zero value matches everything.
type BrowseFilter struct {
	// Query matches listings whose item kind contains it.
	Query string
	// Category restricts to one browse category.
	Category string
	// Featured restricts to the highest-activity listings.
	Featured bool
}

// featuredLimit caps how many listings Browse returns in featured mode.
const featuredLimit = 5

// Browse returns active listings matching the filter, highest current bid
// first.
func (e *Engine) Browse(ctx context.Context, f BrowseFilter) []Snapshot {
	var out []Snapshot
	for l := range e.store.Find(func(l *Listing) bool { return true }) {
		snap := l.Snapshot()
		if f.Query != "" && !containsFold(snap.ItemKind, f.Query) {
			continue
		}
		if f.Category != "" && snap.Category != f.Category {
			continue
		}
		if f.Featured && snap.HighestBidder == "" && snap.BuyoutPrice == 0 {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentBid != out[j].CurrentBid {
			return out[i].CurrentBid > out[j].CurrentBid
		}
		return out[i].ID < out[j].ID
	})
	if f.Featured && len(out) > featuredLimit {
		out = out[:featuredLimit]
	}
	return out
}

// ListBySeller returns the seller's active listings.
func (e *Engine) ListBySeller(ctx context.Context, sellerID string) []Snapshot {
	return e.snapshots(e.store.BySeller(sellerID))
}

// ListByBidder returns the listings where the given party currently holds
// the high bid.
func (e *Engine) ListByBidder(ctx context.Context, bidderID string) []Snapshot {
	return e.snapshots(e.store.ByBidder(bidderID))
}

func (e *Engine) snapshots(ids []string) []Snapshot {
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if l, ok := e.store.Get(id); ok {
			out = append(out, l.Snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// appendEvents journals events, logging rather than failing the operation:
// the in-memory table stays authoritative and a journal gap costs recovery
// fidelity, not correctness of the live system.
func (e *Engine) appendEvents(ctx context.Context, events []event.Event) {
	if len(events) == 0 {
		return
	}
	if err := e.journal.Append(ctx, events...); err != nil {
		e.logger.ErrorContext(ctx, "failed to journal listing events",
			slog.String("listing_id", events[0].AggregateID),
			slog.Any("error", err))
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
