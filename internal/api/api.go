// Package api exposes the auction house over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openrealms/auctionhouse/internal/auction"
	"github.com/openrealms/auctionhouse/internal/economy"
	"github.com/openrealms/auctionhouse/internal/store"
)

// Handler contains the HTTP request handlers.
type Handler struct {
	engine      *auction.Engine
	settlements store.SettlementRepository
	logger      *slog.Logger
}

// NewHandler returns a Handler serving the given engine.
func NewHandler(engine *auction.Engine, settlements store.SettlementRepository, logger *slog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		settlements: settlements,
		logger:      logger,
	}
}

// Routes configures all HTTP routes on a new router.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/listings", h.CreateListing).Methods(http.MethodPost)
	api.HandleFunc("/listings", h.BrowseListings).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", h.GetListing).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", h.CancelListing).Methods(http.MethodDelete)
	api.HandleFunc("/listings/{id}/bids", h.PlaceBid).Methods(http.MethodPost)
	api.HandleFunc("/listings/{id}/buyout", h.Buyout).Methods(http.MethodPost)
	api.HandleFunc("/sellers/{id}/listings", h.SellerListings).Methods(http.MethodGet)
	api.HandleFunc("/sellers/{id}/history", h.SellerHistory).Methods(http.MethodGet)
	api.HandleFunc("/bidders/{id}/bids", h.BidderListings).Methods(http.MethodGet)

	return router
}

type createListingRequest struct {
	SellerID    string `json:"seller_id"`
	ItemKind    string `json:"item_kind"`
	ItemCount   int    `json:"item_count"`
	StartingBid int64  `json:"starting_bid"`
	BuyoutPrice int64  `json:"buyout_price"`
	// TTL is a Go duration string such as "24h". Empty means the default.
	TTL string `json:"ttl"`
}

// CreateListing opens a new listing.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = parsed
	}

	snap, err := h.engine.Create(r.Context(), auction.CreateParams{
		SellerID:    req.SellerID,
		ItemKind:    req.ItemKind,
		ItemCount:   req.ItemCount,
		StartingBid: req.StartingBid,
		BuyoutPrice: req.BuyoutPrice,
		TTL:         ttl,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// BrowseListings returns active listings, filtered by the q, category and
// featured query parameters.
func (h *Handler) BrowseListings(w http.ResponseWriter, r *http.Request) {
	filter := auction.BrowseFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Featured: r.URL.Query().Get("featured") == "true",
	}
	listings := h.engine.Browse(r.Context(), filter)
	respondJSON(w, http.StatusOK, listings)
}

// GetListing returns one active listing.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// CancelListing withdraws a bid-free listing. The seller identifies itself
// with the seller_id query parameter.
func (h *Handler) CancelListing(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("seller_id")
	if sellerID == "" {
		respondError(w, http.StatusBadRequest, "seller_id is required")
		return
	}
	if err := h.engine.Cancel(r.Context(), mux.Vars(r)["id"], sellerID); err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type placeBidRequest struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// PlaceBid places a bid on a listing.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BidderID == "" {
		respondError(w, http.StatusBadRequest, "bidder_id is required")
		return
	}

	snap, err := h.engine.PlaceBid(r.Context(), mux.Vars(r)["id"], req.BidderID, req.Amount)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

type buyoutRequest struct {
	BuyerID string `json:"buyer_id"`
}

// Buyout sells the listing immediately at its buyout price.
func (h *Handler) Buyout(w http.ResponseWriter, r *http.Request) {
	var req buyoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyerID == "" {
		respondError(w, http.StatusBadRequest, "buyer_id is required")
		return
	}

	snap, err := h.engine.Buyout(r.Context(), mux.Vars(r)["id"], req.BuyerID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// SellerListings returns the seller's active listings.
func (h *Handler) SellerListings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.ListBySeller(r.Context(), mux.Vars(r)["id"]))
}

// SellerHistory returns the seller's archived settlements, most recent
// first.
func (h *Handler) SellerHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.settlements.ListBySeller(r.Context(), mux.Vars(r)["id"], 50)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "loading seller history", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if history == nil {
		history = []store.Settlement{}
	}
	respondJSON(w, http.StatusOK, history)
}

// BidderListings returns the listings where the party holds the high bid.
func (h *Handler) BidderListings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.ListByBidder(r.Context(), mux.Vars(r)["id"]))
}

// respondEngineError maps engine errors onto HTTP status codes.
func (h *Handler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auction.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrInvalidAmount), errors.Is(err, auction.ErrBidTooLow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, auction.ErrSelfBidForbidden),
		errors.Is(err, auction.ErrHasActiveBid),
		errors.Is(err, auction.ErrQuotaExceeded),
		errors.Is(err, auction.ErrAlreadyExpired),
		errors.Is(err, auction.ErrNoBuyoutAvailable):
		status = http.StatusConflict
	case errors.Is(err, economy.ErrInsufficientFunds), errors.Is(err, economy.ErrInsufficientItems):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
