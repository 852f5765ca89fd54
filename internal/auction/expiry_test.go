package auction_test

import (
	"testing"
	"time"

	"github.com/openrealms/auctionhouse/internal/auction"
)

func TestExpirySchedule(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := auction.NewExpirySchedule()

	s.Add("l1", base.Add(time.Hour))
	s.Add("l2", base.Add(2*time.Hour))
	s.Add("l3", base.Add(3*time.Hour))

	if due := s.Due(base); len(due) != 0 {
		t.Errorf("Due(base) = %v, want none", due)
	}

	due := s.Due(base.Add(2 * time.Hour))
	if len(due) != 2 || due[0] != "l1" || due[1] != "l2" {
		t.Errorf("Due() = %v, want [l1 l2] in deadline order", due)
	}

	// Due entries are consumed.
	if due := s.Due(base.Add(2 * time.Hour)); len(due) != 0 {
		t.Errorf("second Due() = %v, want none", due)
	}
}

func TestExpirySchedule_Drop(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := auction.NewExpirySchedule()

	s.Add("l1", base.Add(time.Hour))
	s.Add("l2", base.Add(time.Hour))
	s.Drop("l1")

	due := s.Due(base.Add(2 * time.Hour))
	if len(due) != 1 || due[0] != "l2" {
		t.Errorf("Due() after drop = %v, want [l2]", due)
	}

	// Re-adding revokes an earlier drop.
	s.Add("l3", base.Add(time.Hour))
	s.Drop("l3")
	s.Add("l3", base.Add(time.Hour))
	if due := s.Due(base.Add(2 * time.Hour)); len(due) != 1 || due[0] != "l3" {
		t.Errorf("Due() after re-add = %v, want [l3]", due)
	}
}

func TestExpirySchedule_DropUnknownID(t *testing.T) {
	s := auction.NewExpirySchedule()
	s.Drop("never-added")
	if got := s.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}
