// Package loopback implements generator.Invoker without any upstream. It
// produces deterministic skeleton documents, which keeps local development
// and tests independent of model availability.
package loopback

import (
	"context"
	"fmt"

	"github.com/onelab-hq/onelab-server/internal/generator"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

var _ generator.Invoker = (*Invoker)(nil)

// Invoker answers every invocation locally.
type Invoker struct{}

// New creates a loopback invoker.
func New() *Invoker { return &Invoker{} }

// Name identifies the invoker in logs.
func (inv *Invoker) Name() string { return "loopback" }

// Invoke returns a canned document shaped like the real tool output.
func (inv *Invoker) Invoke(ctx context.Context, tool tools.Type, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch tool {
	case tools.Roadmap:
		return map[string]any{
			"title": "Product Roadmap (draft)",
			"phases": []any{
				map[string]any{"name": "Discovery", "duration": "2 weeks", "items": []any{"User interviews", "Competitor scan"}},
				map[string]any{"name": "MVP", "duration": "6 weeks", "items": []any{"Core flows", "Private beta"}},
				map[string]any{"name": "Launch", "duration": "4 weeks", "items": []any{"Pricing page", "Public release"}},
			},
		}, nil
	case tools.PRD:
		return map[string]any{
			"productName": "Untitled Product",
			"overview":    "Draft requirements produced by the loopback generator.",
			"sections": []any{
				map[string]any{"heading": "Problem", "body": "Placeholder"},
				map[string]any{"heading": "Goals", "body": "Placeholder"},
				map[string]any{"heading": "Requirements", "body": "Placeholder"},
			},
		}, nil
	case tools.PitchDeck:
		return map[string]any{
			"companyName": "Untitled Co",
			"slides": []any{
				map[string]any{"title": "Problem", "bullets": []any{"Placeholder"}},
				map[string]any{"title": "Solution", "bullets": []any{"Placeholder"}},
				map[string]any{"title": "Ask", "bullets": []any{"Placeholder"}},
			},
		}, nil
	case tools.Persona:
		return map[string]any{
			"name":         "Sample Persona",
			"role":         "Early adopter",
			"goals":        []any{"Placeholder goal"},
			"frustrations": []any{"Placeholder frustration"},
		}, nil
	case tools.CompetitiveAnalysis:
		return map[string]any{
			"title": "Competitive Landscape (draft)",
			"competitors": []any{
				map[string]any{"name": "Competitor A", "strengths": []any{"Placeholder"}, "weaknesses": []any{"Placeholder"}},
			},
		}, nil
	default:
		return nil, fmt.Errorf("loopback: unknown tool %q", tool)
	}
}
