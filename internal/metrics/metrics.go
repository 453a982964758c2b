// Package metrics tracks in-process counters for the HTTP surface and the
// generation pipeline and renders them in Prometheus text format.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates counters. All methods are safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	// Request metrics
	totalRequests map[string]int64 // by endpoint
	requestErrors map[string]int64 // by endpoint

	// Authentication and rate limiting
	authFailures  int64
	rateLimitHits int64

	// Generation pipeline
	generationsTotal  map[string]int64 // by tool
	generationErrors  map[string]int64 // upstream failures by tool
	generationLatency map[string]int64 // total ms by tool
	creditsDebited    map[string]int64 // credits charged by tool

	// Billing webhook
	webhookEvents map[string]int64 // by event type

	startTime time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		totalRequests:     make(map[string]int64),
		requestErrors:     make(map[string]int64),
		generationsTotal:  make(map[string]int64),
		generationErrors:  make(map[string]int64),
		generationLatency: make(map[string]int64),
		creditsDebited:    make(map[string]int64),
		webhookEvents:     make(map[string]int64),
		startTime:         time.Now(),
	}
}

// RecordRequest counts a handled request; failed marks 5xx responses.
func (c *Collector) RecordRequest(endpoint string, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests[endpoint]++
	if failed {
		c.requestErrors[endpoint]++
	}
}

// RecordAuthFailure counts a rejected API key or session token.
func (c *Collector) RecordAuthFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authFailures++
}

// RecordRateLimitHit counts a 429 rejection.
func (c *Collector) RecordRateLimitHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitHits++
}

// RecordGeneration counts a completed generation and the credits it cost.
func (c *Collector) RecordGeneration(tool string, credits int, latency time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generationsTotal[tool]++
	c.creditsDebited[tool] += int64(credits)
	c.generationLatency[tool] += latency.Milliseconds()
}

// RecordGenerationError counts an upstream failure for the tool.
func (c *Collector) RecordGenerationError(tool string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generationErrors[tool]++
}

// RecordWebhookEvent counts a verified billing event.
func (c *Collector) RecordWebhookEvent(event string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.webhookEvents[event]++
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Uptime            int64
	TotalRequests     map[string]int64
	RequestErrors     map[string]int64
	AuthFailures      int64
	RateLimitHits     int64
	GenerationsTotal  map[string]int64
	GenerationErrors  map[string]int64
	GenerationLatency map[string]int64
	CreditsDebited    map[string]int64
	WebhookEvents     map[string]int64
}

// GetSnapshot copies the current counter state.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Uptime:            int64(time.Since(c.startTime).Seconds()),
		TotalRequests:     copyMap(c.totalRequests),
		RequestErrors:     copyMap(c.requestErrors),
		AuthFailures:      c.authFailures,
		RateLimitHits:     c.rateLimitHits,
		GenerationsTotal:  copyMap(c.generationsTotal),
		GenerationErrors:  copyMap(c.generationErrors),
		GenerationLatency: copyMap(c.generationLatency),
		CreditsDebited:    copyMap(c.creditsDebited),
		WebhookEvents:     copyMap(c.webhookEvents),
	}
}

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
