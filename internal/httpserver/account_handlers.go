package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onelab-hq/onelab-server/internal/apikeys"
	"github.com/onelab-hq/onelab-server/internal/store"
)

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := s.credits.GetOrCreateProfile(ctx, identityFrom(ctx), "", "")
	if err != nil {
		s.logger.Printf("[http] ensure profile: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"credits":    profile.Credits,
			"plan":       string(profile.Plan),
			"tool_costs": s.catalog.ToolCosts,
		},
	})
}

func (s *Server) handleCreditHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := parseLimit(r, 50, 200)
	txs, err := s.credits.History(ctx, identityFrom(ctx), limit)
	if err != nil {
		s.logger.Printf("[http] credit history: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	out := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionJSON(tx))
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func transactionJSON(tx store.CreditTransaction) map[string]any {
	entry := map[string]any{
		"id":          tx.ID,
		"amount":      tx.Amount,
		"type":        string(tx.Type),
		"description": tx.Description,
		"created_at":  tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ToolType != "" {
		entry["tool_type"] = tx.ToolType
	}
	if tx.GenerationID != "" {
		entry["generation_id"] = tx.GenerationID
	}
	return entry
}

func (s *Server) handleGenerationsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := parseLimit(r, 0, 0) // service applies default and cap
	gens, err := s.generations.ListForUser(ctx, identityFrom(ctx), limit, r.URL.Query().Get("tool_type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(gens))
	for _, g := range gens {
		out = append(out, map[string]any{
			"id":           g.ID,
			"tool_type":    string(g.ToolType),
			"title":        g.Title,
			"output":       json.RawMessage(g.Output),
			"credits_used": g.CreditsUsed,
			"created_at":   g.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"generations": out,
			"count":       len(out),
		},
	})
}

func (s *Server) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keys, err := s.apiKeys.List(ctx, identityFrom(ctx))
	if err != nil {
		if err == store.ErrNotFound {
			respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
			return
		}
		s.logger.Printf("[http] list api keys: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		entry := map[string]any{
			"id":         k.ID,
			"name":       k.Name,
			"key_prefix": k.KeyPrefix,
			"created_at": k.CreatedAt.Format(time.RFC3339),
		}
		if k.LastUsedAt != nil {
			entry["last_used_at"] = k.LastUsedAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (s *Server) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	externalID := identityFrom(ctx)

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	// The profile must exist before a key can reference it.
	if _, err := s.credits.GetOrCreateProfile(ctx, externalID, "", ""); err != nil {
		s.logger.Printf("[http] ensure profile: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	created, err := s.apiKeys.Create(ctx, externalID, req.Name)
	if errors.Is(err, apikeys.ErrInvalidName) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Printf("[http] create api key: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	// The plaintext key appears in this response and nowhere else.
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":         created.Key.ID,
			"name":       created.Key.Name,
			"key":        created.Secret,
			"key_prefix": created.Key.KeyPrefix,
			"created_at": created.Key.CreatedAt.Format(time.RFC3339),
		},
	})
}

func (s *Server) handleAPIKeysRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := s.apiKeys.Revoke(ctx, identityFrom(ctx), chi.URLParam(r, "id"))
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "API key not found")
		return
	}
	if err != nil {
		s.logger.Printf("[http] revoke api key: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// parseLimit reads ?limit with a default and an optional cap. Zero values
// leave the bound unset.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
