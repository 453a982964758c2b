package generations

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/store/memory"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := memory.New()
	if _, _, err := st.EnsureProfile(context.Background(), store.EnsureProfileParams{
		ExternalID:     "user-1",
		InitialCredits: 25,
	}); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	return New(st)
}

func TestSaveDerivesTitle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	g, err := svc.Save(ctx, "user-1", tools.Roadmap,
		map[string]any{"productDescription": "a collaborative planning tool"},
		map[string]any{"title": "Q3 Roadmap", "phases": []any{}},
		5)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if g.Title != "Q3 Roadmap" {
		t.Fatalf("title = %q", g.Title)
	}
	if g.CreditsUsed != 5 {
		t.Fatalf("credits used = %d", g.CreditsUsed)
	}

	var decoded map[string]any
	if err := json.Unmarshal(g.Input, &decoded); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	if decoded["productDescription"] != "a collaborative planning tool" {
		t.Fatalf("input = %v", decoded)
	}
}

func TestListForUserLimits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		if _, err := svc.Save(ctx, "user-1", tools.Persona,
			map[string]any{"productDescription": "a tool for tired founders"},
			map[string]any{"name": fmt.Sprintf("Persona %d", i)},
			5); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	byDefault, err := svc.ListForUser(ctx, "user-1", 0, "")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(byDefault) != 50 {
		t.Fatalf("default limit returned %d, want 50", len(byDefault))
	}

	capped, _ := svc.ListForUser(ctx, "user-1", 1000, "")
	if len(capped) != 100 {
		t.Fatalf("capped limit returned %d, want 100", len(capped))
	}

	ten, _ := svc.ListForUser(ctx, "user-1", 10, "")
	if len(ten) != 10 {
		t.Fatalf("limit 10 returned %d", len(ten))
	}
	if ten[0].Title != "Persona 119" {
		t.Fatalf("newest first violated: %q", ten[0].Title)
	}
}

func TestListForUserFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, "user-1", tools.Roadmap,
		map[string]any{}, map[string]any{"title": "R"}, 5); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, "user-1", tools.PRD,
		map[string]any{}, map[string]any{"productName": "P"}, 10); err != nil {
		t.Fatalf("Save: %v", err)
	}

	onlyPRD, err := svc.ListForUser(ctx, "user-1", 0, "prd")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(onlyPRD) != 1 || onlyPRD[0].ToolType != tools.PRD {
		t.Fatalf("filtered = %+v", onlyPRD)
	}

	if _, err := svc.ListForUser(ctx, "user-1", 0, "no-such-tool"); err == nil {
		t.Fatal("invalid tool filter accepted")
	}
}

func TestListForUnknownUserEmpty(t *testing.T) {
	svc := newTestService(t)
	gens, err := svc.ListForUser(context.Background(), "nobody", 0, "")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(gens) != 0 {
		t.Fatalf("got %d generations", len(gens))
	}
}
