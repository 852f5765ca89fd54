package escrow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openrealms/auctionhouse/internal/economy"
	"github.com/openrealms/auctionhouse/internal/escrow"
)

func newLedger(t *testing.T) (*escrow.Ledger, *economy.Bank, *economy.Stockroom) {
	t.Helper()
	bank := economy.NewBank()
	stock := economy.NewStockroom()
	return escrow.NewLedger(bank, stock), bank, stock
}

func TestSwapGold_FirstBid(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("b1", 200)

	prev, hadPrev, err := led.SwapGold(context.Background(), "l1", "b1", 150)
	if err != nil {
		t.Fatalf("SwapGold() error = %v", err)
	}
	if hadPrev {
		t.Errorf("unexpected previous hold %+v", prev)
	}
	if got := bank.Balance("b1"); got != 50 {
		t.Errorf("bidder balance = %d, want 50", got)
	}
	if h, ok := led.GoldHeld("l1"); !ok || h.Party != "b1" || h.Amount != 150 {
		t.Errorf("hold = %+v ok=%v, want b1@150", h, ok)
	}
}

func TestSwapGold_RefundsPreviousHolder(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("b1", 150)
	bank.Deposit("b2", 200)

	if _, _, err := led.SwapGold(context.Background(), "l1", "b1", 150); err != nil {
		t.Fatal(err)
	}
	prev, hadPrev, err := led.SwapGold(context.Background(), "l1", "b2", 200)
	if err != nil {
		t.Fatalf("SwapGold() error = %v", err)
	}
	if !hadPrev || prev.Party != "b1" || prev.Amount != 150 {
		t.Errorf("refunded = %+v, want b1@150", prev)
	}

	// b1 fully refunded, b2 fully escrowed, exactly one hold outstanding.
	if got := bank.Balance("b1"); got != 150 {
		t.Errorf("b1 balance = %d, want 150", got)
	}
	if got := bank.Balance("b2"); got != 0 {
		t.Errorf("b2 balance = %d, want 0", got)
	}
	if got := led.OutstandingGold(); got != 200 {
		t.Errorf("outstanding gold = %d, want 200", got)
	}
}

func TestSwapGold_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("b1", 150)
	bank.Deposit("b2", 10)

	if _, _, err := led.SwapGold(context.Background(), "l1", "b1", 150); err != nil {
		t.Fatal(err)
	}
	_, _, err := led.SwapGold(context.Background(), "l1", "b2", 200)
	if !errors.Is(err, economy.ErrInsufficientFunds) {
		t.Fatalf("SwapGold() error = %v, want ErrInsufficientFunds", err)
	}

	if h, _ := led.GoldHeld("l1"); h.Party != "b1" || h.Amount != 150 {
		t.Errorf("hold = %+v, want untouched b1@150", h)
	}
	if got := bank.Balance("b2"); got != 10 {
		t.Errorf("b2 balance = %d, want untouched 10", got)
	}
}

func TestReleaseGold(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("b1", 100)

	if _, _, err := led.SwapGold(context.Background(), "l1", "b1", 100); err != nil {
		t.Fatal(err)
	}
	h, ok, err := led.ReleaseGold(context.Background(), "l1")
	if err != nil || !ok {
		t.Fatalf("ReleaseGold() = %+v, %v, %v", h, ok, err)
	}
	if got := bank.Balance("b1"); got != 100 {
		t.Errorf("b1 balance = %d, want 100", got)
	}

	// Second release is a no-op.
	if _, ok, err := led.ReleaseGold(context.Background(), "l1"); ok || err != nil {
		t.Errorf("second ReleaseGold() = %v, %v; want no-op", ok, err)
	}
}

func TestDisburseGold_CommissionRetained(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("buyer", 200)

	if _, _, err := led.SwapGold(context.Background(), "l1", "buyer", 200); err != nil {
		t.Fatal(err)
	}
	if _, err := led.DisburseGold(context.Background(), "l1", "seller", 190); err != nil {
		t.Fatalf("DisburseGold() error = %v", err)
	}

	// 190 to the seller, 10 destroyed, nothing left in escrow.
	if got := bank.Balance("seller"); got != 190 {
		t.Errorf("seller balance = %d, want 190", got)
	}
	if got := led.OutstandingGold(); got != 0 {
		t.Errorf("outstanding gold = %d, want 0", got)
	}

	if _, err := led.DisburseGold(context.Background(), "l1", "seller", 1); err == nil {
		t.Error("expected error disbursing a cleared hold")
	}
}

func TestDisburseGold_CannotExceedHold(t *testing.T) {
	led, bank, _ := newLedger(t)
	bank.Deposit("buyer", 100)

	if _, _, err := led.SwapGold(context.Background(), "l1", "buyer", 100); err != nil {
		t.Fatal(err)
	}
	if _, err := led.DisburseGold(context.Background(), "l1", "seller", 101); err == nil {
		t.Fatal("expected error disbursing more than held")
	}
	if h, ok := led.GoldHeld("l1"); !ok || h.Amount != 100 {
		t.Errorf("hold = %+v ok=%v, want intact buyer@100", h, ok)
	}
}

func TestItemHolds(t *testing.T) {
	led, _, stock := newLedger(t)
	stock.Put("seller", "longsword", 1)

	if err := led.HoldItems(context.Background(), "l1", "seller", "longsword", 1); err != nil {
		t.Fatalf("HoldItems() error = %v", err)
	}
	if got := stock.Count("seller", "longsword"); got != 0 {
		t.Errorf("seller inventory = %d, want 0 while escrowed", got)
	}
	if err := led.HoldItems(context.Background(), "l1", "seller", "longsword", 1); err == nil {
		t.Error("expected error holding items twice for one listing")
	}

	h, err := led.DisburseItems(context.Background(), "l1", "buyer")
	if err != nil {
		t.Fatalf("DisburseItems() error = %v", err)
	}
	if h.Kind != "longsword" || h.Count != 1 {
		t.Errorf("disbursed %+v, want longsword x1", h)
	}
	if got := stock.Count("buyer", "longsword"); got != 1 {
		t.Errorf("buyer inventory = %d, want 1", got)
	}
	if got := led.OutstandingItems(); got != 0 {
		t.Errorf("outstanding items = %d, want 0", got)
	}
}

func TestHoldItems_InsufficientItems(t *testing.T) {
	led, _, stock := newLedger(t)
	stock.Put("seller", "iron_ore", 2)

	err := led.HoldItems(context.Background(), "l1", "seller", "iron_ore", 5)
	if !errors.Is(err, economy.ErrInsufficientItems) {
		t.Fatalf("HoldItems() error = %v, want ErrInsufficientItems", err)
	}
	if _, ok := led.ItemsHeld("l1"); ok {
		t.Error("failed hold must not be recorded")
	}
}

func TestReleaseItems(t *testing.T) {
	led, _, stock := newLedger(t)
	stock.Put("seller", "iron_ore", 5)

	if err := led.HoldItems(context.Background(), "l1", "seller", "iron_ore", 5); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := led.ReleaseItems(context.Background(), "l1"); !ok || err != nil {
		t.Fatalf("ReleaseItems() = %v, %v", ok, err)
	}
	if got := stock.Count("seller", "iron_ore"); got != 5 {
		t.Errorf("seller inventory = %d, want 5", got)
	}
	if _, ok, _ := led.ReleaseItems(context.Background(), "l1"); ok {
		t.Error("second ReleaseItems() must be a no-op")
	}
}

func TestRestore(t *testing.T) {
	led, bank, stock := newLedger(t)

	led.Restore("l1",
		&escrow.GoldHold{Party: "b1", Amount: 75},
		&escrow.ItemHold{Party: "seller", Kind: "helm", Count: 1},
	)

	// Restore records holds without touching collaborator balances.
	if got := bank.Balance("b1"); got != 0 {
		t.Errorf("restore moved gold: balance = %d", got)
	}
	if got := stock.Count("seller", "helm"); got != 0 {
		t.Errorf("restore moved items: count = %d", got)
	}
	if h, ok := led.GoldHeld("l1"); !ok || h.Amount != 75 {
		t.Errorf("gold hold = %+v ok=%v, want b1@75", h, ok)
	}
	if h, ok := led.ItemsHeld("l1"); !ok || h.Count != 1 {
		t.Errorf("item hold = %+v ok=%v, want helm x1", h, ok)
	}
}
