// Package apikeys issues, lists, revokes and validates programmatic API keys.
// Secrets are never persisted: the store holds a SHA-256 hash and a display
// prefix, and the plaintext is returned exactly once at creation.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/onelab-hq/onelab-server/internal/keymat"
	"github.com/onelab-hq/onelab-server/internal/store"
)

const maxNameLength = 100

// ErrInvalidName marks a rejected key name. Callers can distinguish it from
// storage failures with errors.Is.
var ErrInvalidName = errors.New("invalid key name")

// Service manages API key credentials on top of a store.Store.
type Service struct {
	store  store.Store
	logger *log.Logger
}

// New creates an API key service.
func New(st store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: st, logger: logger}
}

// Created is the one-time creation result carrying the plaintext secret.
type Created struct {
	Key    store.APIKey
	Secret string
}

// Validation is the outcome of checking a presented bearer token.
type Validation struct {
	Valid      bool
	ExternalID string
	KeyID      string
	KeyName    string
}

// Create mints a new key for the given owner. The returned Secret is the only
// copy of the plaintext that will ever exist.
func (s *Service) Create(ctx context.Context, externalID, name string) (*Created, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	mat, err := keymat.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}
	key, err := s.store.InsertAPIKey(ctx, store.APIKeyParams{
		ExternalID: externalID,
		Name:       name,
		KeyPrefix:  mat.Prefix,
		KeyHash:    mat.Hash,
	})
	if err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}
	return &Created{Key: *key, Secret: mat.Secret}, nil
}

// List returns the owner's active keys, newest first. Hashes are cleared so
// callers cannot leak them into responses.
func (s *Service) List(ctx context.Context, externalID string) ([]store.APIKey, error) {
	keys, err := s.store.APIKeys(ctx, externalID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].KeyHash = ""
	}
	return keys, nil
}

// Revoke permanently deactivates a key. Returns store.ErrNotFound for keys
// that do not exist, belong to another owner, or are already revoked, so a
// caller cannot probe for foreign key ids.
func (s *Service) Revoke(ctx context.Context, externalID, keyID string) error {
	return s.store.RevokeAPIKey(ctx, externalID, keyID)
}

// ValidateToken resolves a presented secret to its owner. Malformed tokens
// are rejected before any store access. A revoked key fails validation even
// though its row is still visible to the hash lookup.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Validation, error) {
	if !keymat.IsValidFormat(token) {
		return &Validation{}, nil
	}
	key, err := s.store.APIKeyByHash(ctx, keymat.Hash(token))
	if err != nil {
		if err == store.ErrNotFound {
			return &Validation{}, nil
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	if key.Revoked() {
		return &Validation{}, nil
	}

	// last_used_at is advisory; a failure here must not fail the request.
	if err := s.store.TouchAPIKey(ctx, key.ID); err != nil {
		s.logger.Printf("[apikeys] touch key %s: %v", key.ID, err)
	}

	return &Validation{
		Valid:      true,
		ExternalID: key.OwnerExternalID,
		KeyID:      key.ID,
		KeyName:    key.Name,
	}, nil
}
