// Package tools defines the closed set of generation tools the platform
// offers, along with per-tool input validation and prompt construction.
package tools

import (
	"fmt"
	"strings"
)

// Type identifies a generation tool. The set is closed; unknown values are
// rejected at the request boundary.
type Type string

const (
	Roadmap             Type = "roadmap"
	PRD                 Type = "prd"
	PitchDeck           Type = "pitch_deck"
	Persona             Type = "persona"
	CompetitiveAnalysis Type = "competitive_analysis"
)

// All returns every known tool type in a stable order.
func All() []Type {
	return []Type{Roadmap, PRD, PitchDeck, Persona, CompetitiveAnalysis}
}

// Parse converts a raw string into a Type.
func Parse(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	switch t {
	case Roadmap, PRD, PitchDeck, Persona, CompetitiveAnalysis:
		return t, nil
	}
	return "", fmt.Errorf("unknown tool type %q", raw)
}

// FromSlug resolves the URL path segment used by the HTTP surface.
func FromSlug(slug string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(slug)) {
	case "roadmap":
		return Roadmap, true
	case "prd":
		return PRD, true
	case "pitch-deck":
		return PitchDeck, true
	case "persona":
		return Persona, true
	case "competitive-analysis":
		return CompetitiveAnalysis, true
	}
	return "", false
}

// Slug returns the URL path segment for the tool.
func (t Type) Slug() string {
	return strings.ReplaceAll(string(t), "_", "-")
}

// Costs maps each tool to its price in credits. It is injected configuration
// shared by balance checks and debits; nothing computes it.
type Costs map[Type]int

// DefaultCosts returns the stock price table.
func DefaultCosts() Costs {
	return Costs{
		Roadmap:             5,
		PRD:                 10,
		PitchDeck:           15,
		Persona:             5,
		CompetitiveAnalysis: 10,
	}
}

// Cost returns the price for the tool, or 0 for unknown tools.
func (c Costs) Cost(t Type) int {
	return c[t]
}

// stringField pulls a trimmed string value out of a decoded JSON document.
func stringField(input map[string]any, key string) string {
	v, ok := input[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// ValidateInput applies the tool's minimum-input rules. The returned error
// text is safe to surface to callers.
func ValidateInput(t Type, input map[string]any) error {
	switch t {
	case Roadmap, Persona, CompetitiveAnalysis:
		if len(stringField(input, "productDescription")) < 10 {
			return fmt.Errorf("please provide a more detailed product description (min 10 characters)")
		}
	case PRD:
		if len(stringField(input, "productIdea")) < 20 {
			return fmt.Errorf("please provide a more detailed product idea (min 20 characters)")
		}
	case PitchDeck:
		for _, key := range []string{"companyName", "problem", "solution"} {
			if stringField(input, key) == "" {
				return fmt.Errorf("missing required field %q", key)
			}
		}
	default:
		return fmt.Errorf("unknown tool type %q", t)
	}
	return nil
}

// BuildPrompt renders the LLM prompt for the tool from its validated input.
// Every prompt demands a single JSON object as the reply so the invoker can
// parse the result structurally.
func BuildPrompt(t Type, input map[string]any) (string, error) {
	switch t {
	case Roadmap:
		return fmt.Sprintf(`You are a product management expert. Generate a detailed product roadmap for the following product:

%q

Create a roadmap with 6-8 items spread across the next four quarters, mixing features, improvements and infrastructure work.

Respond with a single JSON object: {"productName": "...", "vision": "...", "items": [{"quarter": "...", "title": "...", "description": "...", "status": "planned"}]}.
Mark the first one or two items "in-progress" and the rest "planned". Be specific and actionable.`, stringField(input, "productDescription")), nil
	case PRD:
		return fmt.Sprintf(`You are a senior product manager. Generate a comprehensive Product Requirements Document for the following product idea:

%q

Cover: problem statement, target users, user stories, core features, success metrics, technical considerations, MVP scope, and risks with mitigations.

Respond with a single JSON object: {"title": "...", "overview": "...", "sections": [{"title": "...", "content": "..."}]}. Be specific, actionable and thorough.`, stringField(input, "productIdea")), nil
	case PitchDeck:
		return fmt.Sprintf(`You are a startup advisor. Generate an investor pitch deck outline for %q.

Problem: %s
Solution: %s
Target market: %s
Business model: %s
Traction: %s
Team: %s
Raise: %s

Respond with a single JSON object: {"companyName": "...", "tagline": "...", "slides": [{"title": "...", "bullets": ["..."]}]}. Produce 10-12 slides in the classic seed-deck order.`,
			stringField(input, "companyName"), stringField(input, "problem"), stringField(input, "solution"),
			stringField(input, "targetMarket"), stringField(input, "businessModel"), stringField(input, "traction"),
			stringField(input, "team"), stringField(input, "askAmount")), nil
	case Persona:
		return fmt.Sprintf(`You are a UX researcher. Generate a detailed user persona for the following product:

%q

Target industry: %s
User role: %s
Known pain points: %s
Goals: %s

Respond with a single JSON object: {"name": "...", "role": "...", "demographics": {...}, "goals": ["..."], "painPoints": ["..."], "behaviors": ["..."], "quote": "..."}.`,
			stringField(input, "productDescription"), stringField(input, "targetIndustry"),
			stringField(input, "userRole"), stringField(input, "painPoints"), stringField(input, "goals")), nil
	case CompetitiveAnalysis:
		return fmt.Sprintf(`You are a market analyst. Generate a competitive analysis for the following product:

%q

Identify 4-6 direct and indirect competitors, their strengths and weaknesses, and positioning opportunities.

Respond with a single JSON object: {"market": "...", "competitors": [{"name": "...", "strengths": ["..."], "weaknesses": ["..."]}], "opportunities": ["..."]}.`,
			stringField(input, "productDescription")), nil
	}
	return "", fmt.Errorf("unknown tool type %q", t)
}

// Title derives a display title for a generation, preferring what the model
// produced and falling back to a per-tool default.
func Title(t Type, output map[string]any) string {
	for _, key := range []string{"title", "productName", "companyName", "name"} {
		if s, _ := output[key].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	switch t {
	case Roadmap:
		return "Product Roadmap"
	case PRD:
		return "Product Requirements Document"
	case PitchDeck:
		return "Pitch Deck"
	case Persona:
		return "User Persona"
	case CompetitiveAnalysis:
		return "Competitive Analysis"
	}
	return string(t)
}
