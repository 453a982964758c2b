package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPrometheus formats a snapshot in Prometheus text format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func FormatPrometheus(snap Snapshot) string {
	var sb strings.Builder

	sb.WriteString("# HELP onelab_uptime_seconds Time since the server started\n")
	sb.WriteString("# TYPE onelab_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("onelab_uptime_seconds %d\n", snap.Uptime))
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_requests_total Total number of requests by endpoint\n")
	sb.WriteString("# TYPE onelab_requests_total counter\n")
	for _, endpoint := range sortedKeys(snap.TotalRequests) {
		sb.WriteString(fmt.Sprintf("onelab_requests_total{endpoint=%q} %d\n", endpoint, snap.TotalRequests[endpoint]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_request_errors_total Total number of 5xx responses by endpoint\n")
	sb.WriteString("# TYPE onelab_request_errors_total counter\n")
	for _, endpoint := range sortedKeys(snap.RequestErrors) {
		sb.WriteString(fmt.Sprintf("onelab_request_errors_total{endpoint=%q} %d\n", endpoint, snap.RequestErrors[endpoint]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_auth_failures_total Total rejected API keys and session tokens\n")
	sb.WriteString("# TYPE onelab_auth_failures_total counter\n")
	sb.WriteString(fmt.Sprintf("onelab_auth_failures_total %d\n", snap.AuthFailures))
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_rate_limit_hits_total Total number of rate limit rejections\n")
	sb.WriteString("# TYPE onelab_rate_limit_hits_total counter\n")
	sb.WriteString(fmt.Sprintf("onelab_rate_limit_hits_total %d\n", snap.RateLimitHits))
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_generations_total Completed generations by tool\n")
	sb.WriteString("# TYPE onelab_generations_total counter\n")
	for _, tool := range sortedKeys(snap.GenerationsTotal) {
		sb.WriteString(fmt.Sprintf("onelab_generations_total{tool=%q} %d\n", tool, snap.GenerationsTotal[tool]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_generation_errors_total Upstream generation failures by tool\n")
	sb.WriteString("# TYPE onelab_generation_errors_total counter\n")
	for _, tool := range sortedKeys(snap.GenerationErrors) {
		sb.WriteString(fmt.Sprintf("onelab_generation_errors_total{tool=%q} %d\n", tool, snap.GenerationErrors[tool]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_generation_latency_ms_total Total generation latency in milliseconds by tool\n")
	sb.WriteString("# TYPE onelab_generation_latency_ms_total counter\n")
	for _, tool := range sortedKeys(snap.GenerationLatency) {
		sb.WriteString(fmt.Sprintf("onelab_generation_latency_ms_total{tool=%q} %d\n", tool, snap.GenerationLatency[tool]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_credits_debited_total Credits charged by tool\n")
	sb.WriteString("# TYPE onelab_credits_debited_total counter\n")
	for _, tool := range sortedKeys(snap.CreditsDebited) {
		sb.WriteString(fmt.Sprintf("onelab_credits_debited_total{tool=%q} %d\n", tool, snap.CreditsDebited[tool]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP onelab_webhook_events_total Verified billing webhook events by type\n")
	sb.WriteString("# TYPE onelab_webhook_events_total counter\n")
	for _, event := range sortedKeys(snap.WebhookEvents) {
		sb.WriteString(fmt.Sprintf("onelab_webhook_events_total{event=%q} %d\n", event, snap.WebhookEvents[event]))
	}
	sb.WriteString("\n")

	return sb.String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
