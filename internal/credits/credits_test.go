package credits

import (
	"context"
	"testing"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/store/memory"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

func TestGetOrCreateProfileGrantsSignupCredits(t *testing.T) {
	svc := New(memory.New(), nil, 0)
	ctx := context.Background()

	p, err := svc.GetOrCreateProfile(ctx, "user-1", "u@example.com", "U")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if p.Credits != InitialCredits {
		t.Fatalf("credits = %d, want %d", p.Credits, InitialCredits)
	}

	history, err := svc.History(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d entries, want 1", len(history))
	}
	if history[0].Type != store.TransactionSignup || history[0].Description != SignupDescription {
		t.Fatalf("signup entry = %+v", history[0])
	}

	// Idempotent on repeat calls.
	p2, err := svc.GetOrCreateProfile(ctx, "user-1", "u@example.com", "U")
	if err != nil {
		t.Fatalf("GetOrCreateProfile again: %v", err)
	}
	if p2.ID != p.ID || p2.Credits != InitialCredits {
		t.Fatalf("repeat profile = %+v", p2)
	}
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	svc := New(memory.New(), nil, 0)
	balance, err := svc.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestDebitForTool(t *testing.T) {
	svc := New(memory.New(), nil, 0)
	ctx := context.Background()
	if _, err := svc.GetOrCreateProfile(ctx, "user-1", "", ""); err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	remaining, err := svc.DebitForTool(ctx, "user-1", tools.PitchDeck, "gen-1")
	if err != nil {
		t.Fatalf("DebitForTool: %v", err)
	}
	if remaining != InitialCredits-15 {
		t.Fatalf("remaining = %d, want %d", remaining, InitialCredits-15)
	}

	history, _ := svc.History(ctx, "user-1", 1)
	if len(history) != 1 {
		t.Fatalf("got %d entries", len(history))
	}
	entry := history[0]
	if entry.Amount != -15 || entry.ToolType != "pitch_deck" || entry.GenerationID != "gen-1" {
		t.Fatalf("usage entry = %+v", entry)
	}
	if entry.Description != "Used pitch_deck tool" {
		t.Fatalf("description = %q", entry.Description)
	}

	// Drain and verify the short-balance path.
	if _, err := svc.DebitForTool(ctx, "user-1", tools.PitchDeck, "gen-2"); err != nil {
		t.Fatalf("second debit: %v", err)
	}
	remaining, err = svc.DebitForTool(ctx, "user-1", tools.PitchDeck, "gen-3")
	if err != store.ErrInsufficientCredits {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if remaining != InitialCredits-30 {
		t.Fatalf("remaining = %d", remaining)
	}
}

func TestAddCreditsValidation(t *testing.T) {
	svc := New(memory.New(), nil, 0)
	ctx := context.Background()
	if _, err := svc.GetOrCreateProfile(ctx, "user-1", "", ""); err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	if _, err := svc.AddCredits(ctx, "user-1", 0, store.TransactionPurchase, "x"); err == nil {
		t.Fatal("zero amount accepted")
	}
	if _, err := svc.AddCredits(ctx, "user-1", -5, store.TransactionPurchase, "x"); err == nil {
		t.Fatal("negative amount accepted")
	}
	if _, err := svc.AddCredits(ctx, "user-1", 10, store.TransactionUsage, "x"); err == nil {
		t.Fatal("usage type accepted as a grant")
	}
	if _, err := svc.AddCredits(ctx, "user-1", 10, store.TransactionSignup, "x"); err == nil {
		t.Fatal("signup type accepted as a grant")
	}

	remaining, err := svc.AddCredits(ctx, "user-1", 100, store.TransactionPurchase, "Purchased 100 credits")
	if err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if remaining != InitialCredits+100 {
		t.Fatalf("remaining = %d", remaining)
	}
}

func TestCustomInitialGrant(t *testing.T) {
	svc := New(memory.New(), nil, 50)
	p, err := svc.GetOrCreateProfile(context.Background(), "user-1", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if p.Credits != 50 {
		t.Fatalf("credits = %d, want 50", p.Credits)
	}
}

func TestUpdatePlan(t *testing.T) {
	svc := New(memory.New(), nil, 0)
	ctx := context.Background()
	if _, err := svc.GetOrCreateProfile(ctx, "user-1", "", ""); err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if err := svc.UpdatePlan(ctx, "user-1", store.PlanUnlimited, "sub_9"); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if err := svc.UpdatePlan(ctx, "ghost", store.PlanFree, ""); err != store.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
