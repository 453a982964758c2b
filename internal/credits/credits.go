// Package credits manages user balances and the append-only transaction
// ledger behind them. Every balance change goes through the store in a single
// transaction with its audit entry, so the balance always equals the sum of
// the user's transactions.
package credits

import (
	"context"
	"fmt"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

// InitialCredits is the signup grant for new profiles.
const InitialCredits = 25

// SignupDescription labels the signup grant in the ledger.
const SignupDescription = "Welcome bonus credits"

// Service exposes balance and ledger operations.
type Service struct {
	store          store.Store
	costs          tools.Costs
	initialCredits int
}

// New creates a credits service. initialCredits <= 0 falls back to the
// default signup grant; a nil costs map falls back to the default pricing.
func New(st store.Store, costs tools.Costs, initialCredits int) *Service {
	if costs == nil {
		costs = tools.DefaultCosts()
	}
	if initialCredits <= 0 {
		initialCredits = InitialCredits
	}
	return &Service{store: st, costs: costs, initialCredits: initialCredits}
}

// Cost reports what one invocation of the tool charges.
func (s *Service) Cost(tool tools.Type) int {
	return s.costs.Cost(tool)
}

// GetOrCreateProfile returns the user's profile, provisioning it with the
// signup grant on first sight. Safe under concurrent first requests: only
// one caller creates the profile, the rest read it back.
func (s *Service) GetOrCreateProfile(ctx context.Context, externalID, email, displayName string) (*store.UserProfile, error) {
	p, _, err := s.store.EnsureProfile(ctx, store.EnsureProfileParams{
		ExternalID:        externalID,
		Email:             email,
		DisplayName:       displayName,
		InitialCredits:    s.initialCredits,
		SignupDescription: SignupDescription,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

// Balance returns the user's current credit balance, zero for unknown users.
func (s *Service) Balance(ctx context.Context, externalID string) (int, error) {
	p, err := s.store.GetProfile(ctx, externalID)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return p.Credits, nil
}

// DebitForTool charges the cost of one tool invocation and records the usage
// entry referencing the generation it paid for. Returns the remaining balance;
// on store.ErrInsufficientCredits the returned balance is the untouched one.
func (s *Service) DebitForTool(ctx context.Context, externalID string, tool tools.Type, generationID string) (int, error) {
	cost := s.costs.Cost(tool)
	return s.store.Debit(ctx, externalID, cost, store.EntryParams{
		Type:         store.TransactionUsage,
		Description:  fmt.Sprintf("Used %s tool", tool),
		ToolType:     string(tool),
		GenerationID: generationID,
	})
}

// AddCredits grants credits to a user. Only positive grants of purchase,
// bonus or refund type are accepted; usage entries must go through a debit.
func (s *Service) AddCredits(ctx context.Context, externalID string, amount int, txType store.TransactionType, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	switch txType {
	case store.TransactionPurchase, store.TransactionBonus, store.TransactionRefund:
	default:
		return 0, fmt.Errorf("invalid credit type %q", txType)
	}
	return s.store.Credit(ctx, externalID, amount, store.EntryParams{
		Type:        txType,
		Description: description,
	})
}

// UpdatePlan switches the user's plan, keeping the external billing reference.
func (s *Service) UpdatePlan(ctx context.Context, externalID string, plan store.Plan, subscriptionRef string) error {
	return s.store.UpdatePlan(ctx, externalID, plan, subscriptionRef)
}

// History returns the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, externalID string, limit int) ([]store.CreditTransaction, error) {
	txs, err := s.store.Transactions(ctx, externalID, limit)
	if err == store.ErrNotFound {
		return nil, nil
	}
	return txs, err
}
