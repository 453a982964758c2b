// Package store defines the domain model and the storage capability shared by
// the ledger, credential and generation services. Implementations live in the
// postgres, sqlite and memory subpackages and are selected at startup.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/onelab-hq/onelab-server/internal/tools"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound covers both "does not exist" and "not owned by the caller";
	// callers must not distinguish the two externally.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCredits is returned by Debit when the conditional
	// balance update matches no row.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Plan is the subscription tier of a profile.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanStarter   Plan = "starter"
	PlanPro       Plan = "pro"
	PlanUnlimited Plan = "unlimited"
)

// ParsePlan validates a raw plan string.
func ParsePlan(raw string) (Plan, error) {
	switch Plan(raw) {
	case PlanFree, PlanStarter, PlanPro, PlanUnlimited:
		return Plan(raw), nil
	}
	return "", errors.New("unknown plan " + raw)
}

// TransactionType classifies a credit transaction.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionUsage    TransactionType = "usage"
	TransactionBonus    TransactionType = "bonus"
	TransactionRefund   TransactionType = "refund"
	TransactionSignup   TransactionType = "signup"
)

// UserProfile is the root aggregate: one row per identity-provider subject.
type UserProfile struct {
	ID              string    `json:"id"`
	ExternalID      string    `json:"external_id"`
	Email           string    `json:"email,omitempty"`
	DisplayName     string    `json:"display_name,omitempty"`
	Credits         int       `json:"credits"`
	Plan            Plan      `json:"plan"`
	SubscriptionRef string    `json:"subscription_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreditTransaction is an append-only audit record. The sum of a user's
// transaction amounts always equals the profile's current balance.
type CreditTransaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Amount       int             `json:"amount"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description,omitempty"`
	ToolType     string          `json:"tool_type,omitempty"`
	GenerationID string          `json:"generation_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Generation is a persisted tool invocation result.
type Generation struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ToolType    tools.Type      `json:"tool_type"`
	Title       string          `json:"title,omitempty"`
	Input       json.RawMessage `json:"input"`
	Output      json.RawMessage `json:"output"`
	CreditsUsed int             `json:"credits_used"`
	CreatedAt   time.Time       `json:"created_at"`
}

// APIKey is a credential granting programmatic access on behalf of a profile.
// The plaintext secret is never stored; only KeyHash is.
type APIKey struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	OwnerExternalID string     `json:"-"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"prefix"`
	KeyHash         string     `json:"-"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	RevokedAt       *time.Time `json:"-"`
}

// Revoked reports whether the key has been revoked. Revocation is terminal.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// EnsureProfileParams describes a lazy profile creation. When the profile is
// inserted it is seeded with InitialCredits and a matching signup transaction,
// atomically.
type EnsureProfileParams struct {
	ExternalID        string
	Email             string
	DisplayName       string
	InitialCredits    int
	SignupDescription string
}

// EntryParams describes the audit row appended alongside a balance mutation.
type EntryParams struct {
	Type         TransactionType
	Description  string
	ToolType     string
	GenerationID string
}

// GenerationParams describes a generation insert, keyed by the owner's
// external id.
type GenerationParams struct {
	ExternalID  string
	ToolType    tools.Type
	Title       string
	Input       json.RawMessage
	Output      json.RawMessage
	CreditsUsed int
}

// APIKeyParams describes an API key insert. KeyHash is the only secret
// derivative that reaches storage.
type APIKeyParams struct {
	ExternalID string
	Name       string
	KeyPrefix  string
	KeyHash    string
}

// Store is the storage capability backing the platform. All methods are safe
// for concurrent use; Debit in particular must be a single atomic conditional
// update so concurrent spends can never drive a balance negative.
type Store interface {
	// GetProfile returns the profile for the subject, or ErrNotFound.
	GetProfile(ctx context.Context, externalID string) (*UserProfile, error)

	// EnsureProfile is an idempotent lookup-or-insert keyed by external id.
	// The created flag reports whether this call inserted the row. Losing a
	// concurrent first-insert race yields the existing row, not an error.
	EnsureProfile(ctx context.Context, params EnsureProfileParams) (profile *UserProfile, created bool, err error)

	// UpdatePlan mutates the plan without touching credits. Idempotent.
	UpdatePlan(ctx context.Context, externalID string, plan Plan, subscriptionRef string) error

	// Debit atomically subtracts amount iff the balance covers it, appending
	// a transaction of -amount. Returns the new balance, ErrNotFound, or
	// ErrInsufficientCredits.
	Debit(ctx context.Context, externalID string, amount int, entry EntryParams) (int, error)

	// Credit atomically adds amount, appending a transaction of +amount.
	Credit(ctx context.Context, externalID string, amount int, entry EntryParams) (int, error)

	// Transactions lists the user's audit trail, newest first.
	Transactions(ctx context.Context, externalID string, limit int) ([]CreditTransaction, error)

	// InsertGeneration persists a tool invocation result.
	InsertGeneration(ctx context.Context, params GenerationParams) (*Generation, error)

	// Generations lists the user's generations, newest first, optionally
	// filtered by tool type (empty string means no filter).
	Generations(ctx context.Context, externalID string, limit int, toolType string) ([]Generation, error)

	// InsertAPIKey persists a new credential for the owning profile.
	InsertAPIKey(ctx context.Context, params APIKeyParams) (*APIKey, error)

	// APIKeys lists the owner's non-revoked keys, newest first.
	APIKeys(ctx context.Context, externalID string) ([]APIKey, error)

	// RevokeAPIKey marks the key revoked iff it belongs to the owner and is
	// not already revoked; otherwise ErrNotFound.
	RevokeAPIKey(ctx context.Context, externalID, keyID string) error

	// APIKeyByHash looks a key up by the hash of its plaintext, including
	// revoked keys (the caller decides how to treat revocation).
	APIKeyByHash(ctx context.Context, hash string) (*APIKey, error)

	// TouchAPIKey stamps last_used_at. Best-effort telemetry.
	TouchAPIKey(ctx context.Context, keyID string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
