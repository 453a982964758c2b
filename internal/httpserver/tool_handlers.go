package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

// handleToolInvoke runs one paid tool invocation. The same handler backs
// POST /v1/{tool} and POST /api/generate/{tool}; only the authentication
// middleware differs.
//
// Nothing is debited until the upstream generation succeeds, and the usage
// entry references the saved generation record.
func (s *Server) handleToolInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	externalID := identityFrom(ctx)

	tool, ok := tools.FromSlug(chi.URLParam(r, "tool"))
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown tool")
		return
	}
	cost := s.credits.Cost(tool)

	input, err := decodeBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := tools.ValidateInput(tool, input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := s.credits.GetOrCreateProfile(ctx, externalID, "", "")
	if err != nil {
		s.logger.Printf("[http] ensure profile %s: %v", externalID, err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if profile.Credits < cost {
		respondInsufficientCredits(w, cost, profile.Credits)
		return
	}

	started := time.Now()
	output, err := s.invoker.Invoke(ctx, tool, input)
	if err != nil {
		s.logger.Printf("[http] %s generation via %s: %v", tool, s.invoker.Name(), err)
		s.collector.RecordGenerationError(string(tool))
		respondError(w, http.StatusBadGateway, "Generation failed, please try again")
		return
	}

	gen, err := s.generations.Save(ctx, externalID, tool, input, output, cost)
	if err != nil {
		s.logger.Printf("[http] save %s generation: %v", tool, err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	remaining, err := s.credits.DebitForTool(ctx, externalID, tool, gen.ID)
	if err == store.ErrInsufficientCredits {
		// Lost a race against another debit after the pre-check.
		respondInsufficientCredits(w, cost, remaining)
		return
	}
	if err != nil {
		s.logger.Printf("[http] debit %s for %s: %v", externalID, tool, err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.collector.RecordGeneration(string(tool), cost, time.Since(started))
	s.debugf("%s invoked %s for %d credits, %d remaining", externalID, tool, cost, remaining)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"data":              output,
		"generation_id":     gen.ID,
		"credits_used":      cost,
		"credits_remaining": remaining,
	})
}
