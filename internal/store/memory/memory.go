// Package memory provides an in-memory store.Store for environments without
// configured persistence, and as the substrate for unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onelab-hq/onelab-server/internal/store"
)

// Store implements store.Store with mutex-guarded maps. State is lost on
// process exit.
type Store struct {
	mu           sync.Mutex
	profiles     map[string]*store.UserProfile // keyed by external id
	transactions []store.CreditTransaction
	generations  []store.Generation
	keys         map[string]*store.APIKey // keyed by key id
	seq          int64
	now          func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		profiles: make(map[string]*store.UserProfile),
		keys:     make(map[string]*store.APIKey),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock swaps the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// tick returns a strictly increasing timestamp so newest-first ordering is
// stable even when the wall clock does not advance between calls.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Nanosecond)
}

func (s *Store) GetProfile(ctx context.Context, externalID string) (*store.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) EnsureProfile(ctx context.Context, params store.EnsureProfileParams) (*store.UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[params.ExternalID]; ok {
		cp := *p
		return &cp, false, nil
	}
	ts := s.tick()
	p := &store.UserProfile{
		ID:          uuid.NewString(),
		ExternalID:  params.ExternalID,
		Email:       params.Email,
		DisplayName: params.DisplayName,
		Credits:     params.InitialCredits,
		Plan:        store.PlanFree,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.profiles[params.ExternalID] = p
	if params.InitialCredits > 0 {
		s.transactions = append(s.transactions, store.CreditTransaction{
			ID:          uuid.NewString(),
			UserID:      p.ID,
			Amount:      params.InitialCredits,
			Type:        store.TransactionSignup,
			Description: params.SignupDescription,
			CreatedAt:   ts,
		})
	}
	cp := *p
	return &cp, true, nil
}

func (s *Store) UpdatePlan(ctx context.Context, externalID string, plan store.Plan, subscriptionRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return store.ErrNotFound
	}
	p.Plan = plan
	p.SubscriptionRef = subscriptionRef
	p.UpdatedAt = s.tick()
	return nil
}

func (s *Store) Debit(ctx context.Context, externalID string, amount int, entry store.EntryParams) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if p.Credits < amount {
		return p.Credits, store.ErrInsufficientCredits
	}
	p.Credits -= amount
	p.UpdatedAt = s.tick()
	s.appendTransaction(p.ID, -amount, entry, p.UpdatedAt)
	return p.Credits, nil
}

func (s *Store) Credit(ctx context.Context, externalID string, amount int, entry store.EntryParams) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.Credits += amount
	p.UpdatedAt = s.tick()
	s.appendTransaction(p.ID, amount, entry, p.UpdatedAt)
	return p.Credits, nil
}

// appendTransaction must be called with the lock held.
func (s *Store) appendTransaction(userID string, amount int, entry store.EntryParams, ts time.Time) {
	s.transactions = append(s.transactions, store.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		Type:         entry.Type,
		Description:  entry.Description,
		ToolType:     entry.ToolType,
		GenerationID: entry.GenerationID,
		CreatedAt:    ts,
	})
}

func (s *Store) Transactions(ctx context.Context, externalID string, limit int) ([]store.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []store.CreditTransaction
	for _, tx := range s.transactions {
		if tx.UserID == p.ID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertGeneration(ctx context.Context, params store.GenerationParams) (*store.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[params.ExternalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	g := store.Generation{
		ID:          uuid.NewString(),
		UserID:      p.ID,
		ToolType:    params.ToolType,
		Title:       params.Title,
		Input:       append([]byte(nil), params.Input...),
		Output:      append([]byte(nil), params.Output...),
		CreditsUsed: params.CreditsUsed,
		CreatedAt:   s.tick(),
	}
	s.generations = append(s.generations, g)
	cp := g
	return &cp, nil
}

func (s *Store) Generations(ctx context.Context, externalID string, limit int, toolType string) ([]store.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []store.Generation
	for _, g := range s.generations {
		if g.UserID != p.ID {
			continue
		}
		if toolType != "" && string(g.ToolType) != toolType {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertAPIKey(ctx context.Context, params store.APIKeyParams) (*store.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[params.ExternalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	k := &store.APIKey{
		ID:              uuid.NewString(),
		UserID:          p.ID,
		OwnerExternalID: p.ExternalID,
		Name:            params.Name,
		KeyPrefix:       params.KeyPrefix,
		KeyHash:         params.KeyHash,
		CreatedAt:       s.tick(),
	}
	s.keys[k.ID] = k
	cp := *k
	return &cp, nil
}

func (s *Store) APIKeys(ctx context.Context, externalID string) ([]store.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []store.APIKey
	for _, k := range s.keys {
		if k.UserID == p.ID && !k.Revoked() {
			out = append(out, *k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, externalID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[externalID]
	if !ok {
		return store.ErrNotFound
	}
	k, ok := s.keys[keyID]
	if !ok || k.UserID != p.ID || k.Revoked() {
		return store.ErrNotFound
	}
	ts := s.tick()
	k.RevokedAt = &ts
	return nil
}

func (s *Store) APIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) TouchAPIKey(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok {
		return store.ErrNotFound
	}
	ts := s.tick()
	k.LastUsedAt = &ts
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
