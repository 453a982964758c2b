// Package postgres implements store.Store backed by PostgreSQL via the pgx
// stdlib driver. It is the driver for multi-node deployments where the
// conditional debit must hold across processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	// register pgx stdlib driver
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

// Store implements store.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New connects to PostgreSQL with the given DSN and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	credits INTEGER NOT NULL DEFAULT 0,
	plan TEXT NOT NULL DEFAULT 'free',
	subscription_ref TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS credit_transactions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES user_profiles(id),
	amount INTEGER NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('purchase','usage','bonus','refund','signup')),
	description TEXT NOT NULL DEFAULT '',
	tool_type TEXT,
	generation_id UUID,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_created ON credit_transactions(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS generations (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES user_profiles(id),
	tool_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	input JSONB NOT NULL DEFAULT '{}',
	output JSONB NOT NULL DEFAULT '{}',
	credits_used INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_user_created ON generations(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS api_keys (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES user_profiles(id),
	name TEXT NOT NULL,
	key_prefix TEXT NOT NULL,
	key_hash TEXT NOT NULL UNIQUE,
	last_used_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetProfile(ctx context.Context, externalID string) (*store.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, external_id, email, display_name, credits, plan, subscription_ref, created_at, updated_at
FROM user_profiles WHERE external_id = $1`, externalID)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*store.UserProfile, error) {
	var p store.UserProfile
	var plan string
	err := row.Scan(&p.ID, &p.ExternalID, &p.Email, &p.DisplayName, &p.Credits, &plan, &p.SubscriptionRef, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.Plan = store.Plan(plan)
	return &p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, params store.EnsureProfileParams) (*store.UserProfile, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin ensure profile: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	id := uuid.NewString()
	res, err := tx.ExecContext(ctx, `
INSERT INTO user_profiles(id, external_id, email, display_name, credits, plan, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, 'free', $6, $6)
ON CONFLICT (external_id) DO NOTHING`,
		id, params.ExternalID, params.Email, params.DisplayName, params.InitialCredits, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert profile: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 1 && params.InitialCredits > 0 {
		_, err = tx.ExecContext(ctx, `
INSERT INTO credit_transactions(id, user_id, amount, type, description, created_at)
VALUES($1, $2, $3, 'signup', $4, $5)`,
			uuid.NewString(), id, params.InitialCredits, params.SignupDescription, now)
		if err != nil {
			return nil, false, fmt.Errorf("record signup grant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit ensure profile: %w", err)
	}

	p, err := s.GetProfile(ctx, params.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return p, inserted == 1, nil
}

func (s *Store) UpdatePlan(ctx context.Context, externalID string, plan store.Plan, subscriptionRef string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE user_profiles SET plan = $1, subscription_ref = $2, updated_at = $3 WHERE external_id = $4`,
		string(plan), subscriptionRef, time.Now().UTC(), externalID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Debit atomically decrements the balance and appends the usage entry. The
// conditional UPDATE carries the only balance check, so concurrent debits
// for the same profile serialize on the row lock.
func (s *Store) Debit(ctx context.Context, externalID string, amount int, entry store.EntryParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var userID string
	var remaining int
	err = tx.QueryRowContext(ctx, `
UPDATE user_profiles SET credits = credits - $1, updated_at = $2
WHERE external_id = $3 AND credits >= $1
RETURNING id, credits`, amount, now, externalID).Scan(&userID, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the profile is missing or the balance is short.
		var credits int
		readErr := tx.QueryRowContext(ctx, `
SELECT credits FROM user_profiles WHERE external_id = $1`, externalID).Scan(&credits)
		if errors.Is(readErr, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		if readErr != nil {
			return 0, fmt.Errorf("read balance: %w", readErr)
		}
		return credits, store.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO credit_transactions(id, user_id, amount, type, description, tool_type, generation_id, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, -amount, string(entry.Type), entry.Description,
		nullString(entry.ToolType), nullString(entry.GenerationID), now)
	if err != nil {
		return 0, fmt.Errorf("record debit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit debit: %w", err)
	}
	return remaining, nil
}

func (s *Store) Credit(ctx context.Context, externalID string, amount int, entry store.EntryParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin credit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var userID string
	var remaining int
	err = tx.QueryRowContext(ctx, `
UPDATE user_profiles SET credits = credits + $1, updated_at = $2
WHERE external_id = $3
RETURNING id, credits`, amount, now, externalID).Scan(&userID, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO credit_transactions(id, user_id, amount, type, description, tool_type, generation_id, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, amount, string(entry.Type), entry.Description,
		nullString(entry.ToolType), nullString(entry.GenerationID), now)
	if err != nil {
		return 0, fmt.Errorf("record credit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit: %w", err)
	}
	return remaining, nil
}

func (s *Store) Transactions(ctx context.Context, externalID string, limit int) ([]store.CreditTransaction, error) {
	userID, err := s.userID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	query := `
SELECT id, user_id, amount, type, description, COALESCE(tool_type, ''), COALESCE(generation_id::text, ''), created_at
FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []store.CreditTransaction
	for rows.Next() {
		var tx store.CreditTransaction
		var txType string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &txType, &tx.Description, &tx.ToolType, &tx.GenerationID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = store.TransactionType(txType)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) InsertGeneration(ctx context.Context, params store.GenerationParams) (*store.Generation, error) {
	userID, err := s.userID(ctx, params.ExternalID)
	if err != nil {
		return nil, err
	}
	g := store.Generation{
		ID:          uuid.NewString(),
		UserID:      userID,
		ToolType:    params.ToolType,
		Title:       params.Title,
		Input:       params.Input,
		Output:      params.Output,
		CreditsUsed: params.CreditsUsed,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO generations(id, user_id, tool_type, title, input, output, credits_used, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.UserID, string(g.ToolType), g.Title, string(g.Input), string(g.Output), g.CreditsUsed, g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	return &g, nil
}

func (s *Store) Generations(ctx context.Context, externalID string, limit int, toolType string) ([]store.Generation, error) {
	userID, err := s.userID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	query := `
SELECT id, user_id, tool_type, title, input, output, credits_used, created_at
FROM generations WHERE user_id = $1`
	args := []any{userID}
	if toolType != "" {
		args = append(args, toolType)
		query += fmt.Sprintf(` AND tool_type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []store.Generation
	for rows.Next() {
		var g store.Generation
		var tool string
		var input, output []byte
		if err := rows.Scan(&g.ID, &g.UserID, &tool, &g.Title, &input, &output, &g.CreditsUsed, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.ToolType = tools.Type(tool)
		g.Input = input
		g.Output = output
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) InsertAPIKey(ctx context.Context, params store.APIKeyParams) (*store.APIKey, error) {
	userID, err := s.userID(ctx, params.ExternalID)
	if err != nil {
		return nil, err
	}
	k := store.APIKey{
		ID:              uuid.NewString(),
		UserID:          userID,
		OwnerExternalID: params.ExternalID,
		Name:            params.Name,
		KeyPrefix:       params.KeyPrefix,
		KeyHash:         params.KeyHash,
		CreatedAt:       time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO api_keys(id, user_id, name, key_prefix, key_hash, created_at)
VALUES($1, $2, $3, $4, $5, $6)`,
		k.ID, k.UserID, k.Name, k.KeyPrefix, k.KeyHash, k.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}
	return &k, nil
}

func (s *Store) APIKeys(ctx context.Context, externalID string) ([]store.APIKey, error) {
	userID, err := s.userID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT k.id, k.user_id, p.external_id, k.name, k.key_prefix, k.key_hash, k.last_used_at, k.created_at, k.revoked_at
FROM api_keys k JOIN user_profiles p ON p.id = k.user_id
WHERE k.user_id = $1 AND k.revoked_at IS NULL
ORDER BY k.created_at DESC, k.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []store.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *Store) RevokeAPIKey(ctx context.Context, externalID, keyID string) error {
	userID, err := s.userID(ctx, externalID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE api_keys SET revoked_at = $1 WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`,
		time.Now().UTC(), keyID, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) APIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT k.id, k.user_id, p.external_id, k.name, k.key_prefix, k.key_hash, k.last_used_at, k.created_at, k.revoked_at
FROM api_keys k JOIN user_profiles p ON p.id = k.user_id
WHERE k.key_hash = $1`, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	return scanKey(rows)
}

func (s *Store) TouchAPIKey(ctx context.Context, keyID string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) userID(ctx context.Context, externalID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM user_profiles WHERE external_id = $1`, externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve profile: %w", err)
	}
	return id, nil
}

func scanKey(rows *sql.Rows) (*store.APIKey, error) {
	var k store.APIKey
	var lastUsed, revoked sql.NullTime
	if err := rows.Scan(&k.ID, &k.UserID, &k.OwnerExternalID, &k.Name, &k.KeyPrefix, &k.KeyHash, &lastUsed, &k.CreatedAt, &revoked); err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		k.RevokedAt = &t
	}
	return &k, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
