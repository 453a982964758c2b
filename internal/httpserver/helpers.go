package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// respondInsufficientCredits adds the amounts a client needs to prompt the
// user for a top-up.
func respondInsufficientCredits(w http.ResponseWriter, required, remaining int) {
	respondJSON(w, http.StatusPaymentRequired, map[string]any{
		"success":           false,
		"error":             "Insufficient credits",
		"credits_required":  required,
		"credits_remaining": remaining,
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// decodeBody decodes a JSON object body, rejecting anything else.
func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
