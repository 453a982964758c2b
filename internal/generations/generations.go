// Package generations records tool outputs and serves a user's history.
package generations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Service stores and lists generation records.
type Service struct {
	store store.Store
}

// New creates a generations service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Save persists one tool invocation's input and output. The title is derived
// from the output so history listings have something human to show.
func (s *Service) Save(ctx context.Context, externalID string, tool tools.Type, input, output map[string]any, creditsUsed int) (*store.Generation, error) {
	rawInput, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	rawOutput, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return s.store.InsertGeneration(ctx, store.GenerationParams{
		ExternalID:  externalID,
		ToolType:    tool,
		Title:       tools.Title(tool, output),
		Input:       rawInput,
		Output:      rawOutput,
		CreditsUsed: creditsUsed,
	})
}

// ListForUser returns the user's generations, newest first, optionally
// filtered by tool type. The limit defaults to 50 and is capped at 100.
func (s *Service) ListForUser(ctx context.Context, externalID string, limit int, toolType string) ([]store.Generation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if toolType != "" {
		if _, err := tools.Parse(toolType); err != nil {
			return nil, err
		}
	}
	gens, err := s.store.Generations(ctx, externalID, limit, toolType)
	if err == store.ErrNotFound {
		return nil, nil
	}
	return gens, err
}
