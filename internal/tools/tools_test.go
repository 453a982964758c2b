package tools

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	for _, tool := range All() {
		parsed, err := Parse(string(tool))
		if err != nil {
			t.Fatalf("Parse(%q): %v", tool, err)
		}
		if parsed != tool {
			t.Fatalf("Parse(%q) = %q", tool, parsed)
		}
	}
	if _, err := Parse("sales_forecast"); err == nil {
		t.Fatal("expected error for unknown tool type")
	}
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty tool type")
	}
}

func TestSlugRoundTrip(t *testing.T) {
	for _, tool := range All() {
		got, ok := FromSlug(tool.Slug())
		if !ok {
			t.Fatalf("FromSlug(%q) not recognized", tool.Slug())
		}
		if got != tool {
			t.Fatalf("FromSlug(%q) = %q, want %q", tool.Slug(), got, tool)
		}
	}
	if _, ok := FromSlug("mission-statement"); ok {
		t.Fatal("unexpected slug accepted")
	}
}

func TestDefaultCosts(t *testing.T) {
	costs := DefaultCosts()
	want := map[Type]int{
		Roadmap:             5,
		PRD:                 10,
		PitchDeck:           15,
		Persona:             5,
		CompetitiveAnalysis: 10,
	}
	for tool, price := range want {
		if costs.Cost(tool) != price {
			t.Errorf("cost of %s = %d, want %d", tool, costs.Cost(tool), price)
		}
	}
	if costs.Cost(Type("bogus")) != 0 {
		t.Error("unknown tool should cost 0")
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		tool    Type
		input   map[string]any
		wantErr bool
	}{
		{"roadmap ok", Roadmap, map[string]any{"productDescription": "an AI note-taking app for lawyers"}, false},
		{"roadmap too short", Roadmap, map[string]any{"productDescription": "notes"}, true},
		{"roadmap missing", Roadmap, map[string]any{}, true},
		{"roadmap wrong type", Roadmap, map[string]any{"productDescription": 42}, true},
		{"prd ok", PRD, map[string]any{"productIdea": "a marketplace connecting freelance editors with publishers"}, false},
		{"prd too short", PRD, map[string]any{"productIdea": "an editor app"}, true},
		{"persona ok", Persona, map[string]any{"productDescription": "fitness tracking for seniors"}, false},
		{"competitive ok", CompetitiveAnalysis, map[string]any{"productDescription": "fitness tracking for seniors"}, false},
		{"pitch deck ok", PitchDeck, map[string]any{"companyName": "Acme", "problem": "slow builds", "solution": "faster builds"}, false},
		{"pitch deck missing solution", PitchDeck, map[string]any{"companyName": "Acme", "problem": "slow builds"}, true},
		{"unknown tool", Type("weather"), map[string]any{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.tool, tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInput() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildPromptIncludesInput(t *testing.T) {
	prompt, err := BuildPrompt(Roadmap, map[string]any{"productDescription": "an AI recipe planner"})
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "an AI recipe planner") {
		t.Fatal("prompt does not embed the product description")
	}
	if !strings.Contains(prompt, "JSON object") {
		t.Fatal("prompt does not demand a JSON reply")
	}

	if _, err := BuildPrompt(Type("bogus"), nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestTitle(t *testing.T) {
	if got := Title(PRD, map[string]any{"title": " Checkout Revamp - PRD "}); got != "Checkout Revamp - PRD" {
		t.Fatalf("Title = %q", got)
	}
	if got := Title(Roadmap, map[string]any{"productName": "Acme Planner"}); got != "Acme Planner" {
		t.Fatalf("Title = %q", got)
	}
	if got := Title(Persona, map[string]any{}); got != "User Persona" {
		t.Fatalf("fallback Title = %q", got)
	}
}
