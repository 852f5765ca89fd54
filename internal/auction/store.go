package auction

import (
	"iter"
	"sync"
)

// Store is the authoritative table of active listings. It exclusively owns
// every Listing; other components reach listings only through it. The
// store's lock covers only map and index maintenance, never bid
// validation, so operations on different listings do not contend.
type Store struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	// bySeller and byBidder are derived indexes, maintained under the
	// same lock as the primary table.
	bySeller map[string]map[string]struct{}
	byBidder map[string]map[string]struct{}
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		listings: make(map[string]*Listing),
		bySeller: make(map[string]map[string]struct{}),
		byBidder: make(map[string]map[string]struct{}),
	}
}

// Insert adds a listing, enforcing the per-seller quota atomically with
// the insertion.
func (s *Store) Insert(l *Listing, maxPerSeller int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.bySeller[l.SellerID]) >= maxPerSeller {
		return ErrQuotaExceeded
	}
	s.listings[l.ID] = l
	if s.bySeller[l.SellerID] == nil {
		s.bySeller[l.SellerID] = make(map[string]struct{})
	}
	s.bySeller[l.SellerID][l.ID] = struct{}{}
	return nil
}

// Get returns the listing with the given id.
func (s *Store) Get(id string) (*Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	return l, ok
}

// Remove deletes a listing and its index entries. Removing an id twice is
// harmless; the second call reports false so racing callers can treat it
// as a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return false
	}
	delete(s.listings, id)
	if sellers := s.bySeller[l.SellerID]; sellers != nil {
		delete(sellers, id)
		if len(sellers) == 0 {
			delete(s.bySeller, l.SellerID)
		}
	}
	for bidder, ids := range s.byBidder {
		if _, ok := ids[id]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.byBidder, bidder)
			}
		}
	}
	return true
}

// reindexBidder moves a listing between bidder index buckets when the
// high bidder changes.
func (s *Store) reindexBidder(listingID, prev, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev != "" {
		if ids := s.byBidder[prev]; ids != nil {
			delete(ids, listingID)
			if len(ids) == 0 {
				delete(s.byBidder, prev)
			}
		}
	}
	if next != "" {
		if s.byBidder[next] == nil {
			s.byBidder[next] = make(map[string]struct{})
		}
		s.byBidder[next][listingID] = struct{}{}
	}
}

// Find returns a lazy, restartable sequence of listings matching pred.
// Iteration order is unspecified. The predicate runs without the store
// lock held, so it may lock individual listings.
func (s *Store) Find(pred func(*Listing) bool) iter.Seq[*Listing] {
	return func(yield func(*Listing) bool) {
		s.mu.RLock()
		all := make([]*Listing, 0, len(s.listings))
		for _, l := range s.listings {
			all = append(all, l)
		}
		s.mu.RUnlock()

		for _, l := range all {
			if !pred(l) {
				continue
			}
			if !yield(l) {
				return
			}
		}
	}
}

// BySeller returns the ids of the seller's active listings.
func (s *Store) BySeller(sellerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.bySeller[sellerID]))
	for id := range s.bySeller[sellerID] {
		ids = append(ids, id)
	}
	return ids
}

// ByBidder returns the ids of listings where the given party is the
// current high bidder.
func (s *Store) ByBidder(bidderID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byBidder[bidderID]))
	for id := range s.byBidder[bidderID] {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of active listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}
