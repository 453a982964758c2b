package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("/v1/roadmap", false)
	c.RecordRequest("/v1/roadmap", true)
	c.RecordGeneration("roadmap", 5, 120*time.Millisecond)
	c.RecordGeneration("roadmap", 5, 80*time.Millisecond)
	c.RecordGenerationError("prd")
	c.RecordAuthFailure()
	c.RecordRateLimitHit()
	c.RecordWebhookEvent("checkout.completed")

	snap := c.GetSnapshot()
	if snap.TotalRequests["/v1/roadmap"] != 2 || snap.RequestErrors["/v1/roadmap"] != 1 {
		t.Fatalf("request counters = %v / %v", snap.TotalRequests, snap.RequestErrors)
	}
	if snap.GenerationsTotal["roadmap"] != 2 {
		t.Fatalf("generations = %v", snap.GenerationsTotal)
	}
	if snap.CreditsDebited["roadmap"] != 10 {
		t.Fatalf("credits debited = %v", snap.CreditsDebited)
	}
	if snap.GenerationLatency["roadmap"] != 200 {
		t.Fatalf("latency = %v", snap.GenerationLatency)
	}
	if snap.GenerationErrors["prd"] != 1 || snap.AuthFailures != 1 || snap.RateLimitHits != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.WebhookEvents["checkout.completed"] != 1 {
		t.Fatalf("webhook events = %v", snap.WebhookEvents)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordRequest("/healthz", false)
	c.RecordGeneration("roadmap", 5, time.Millisecond)
	c.RecordGenerationError("roadmap")
	c.RecordAuthFailure()
	c.RecordRateLimitHit()
	c.RecordWebhookEvent("x")
}

func TestFormatPrometheus(t *testing.T) {
	c := NewCollector()
	c.RecordGeneration("pitch_deck", 15, 300*time.Millisecond)
	c.RecordRateLimitHit()

	out := FormatPrometheus(c.GetSnapshot())
	for _, want := range []string{
		`onelab_generations_total{tool="pitch_deck"} 1`,
		`onelab_credits_debited_total{tool="pitch_deck"} 15`,
		"onelab_rate_limit_hits_total 1",
		"# TYPE onelab_uptime_seconds gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
