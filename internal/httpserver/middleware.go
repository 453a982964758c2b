package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// countRequests records per-endpoint request and 5xx counters. Endpoints are
// labeled by chi route pattern so path parameters do not explode cardinality.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.collector == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		s.collector.RecordRequest(endpoint, ww.Status() >= http.StatusInternalServerError)
	})
}

type contextKey string

const (
	identityKey contextKey = "identity"
	apiKeyIDKey contextKey = "api_key_id"
)

// identityFrom returns the authenticated caller's external id.
func identityFrom(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

// apiKeyAuth authenticates /v1 requests by bearer API key. Unknown, malformed
// and revoked keys all produce the same 401 so the endpoint cannot be used to
// probe which keys exist.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		v, err := s.apiKeys.ValidateToken(r.Context(), token)
		if err != nil {
			s.logger.Printf("[http] validate api key: %v", err)
			respondError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		if !v.Valid {
			s.collector.RecordAuthFailure()
			respondError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		s.debugf("api key %s authenticated for %s", v.KeyID, r.URL.Path)
		ctx := context.WithValue(r.Context(), identityKey, v.ExternalID)
		ctx = context.WithValue(ctx, apiKeyIDKey, v.KeyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit throttles per API key. Requests without a key id (session
// traffic) pass through untouched.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, _ := r.Context().Value(apiKeyIDKey).(string)
		if keyID == "" || s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, retryAfter := s.limiter.Allow(keyID)
		if !ok {
			s.collector.RecordRateLimitHit()
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()+1))
			respondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionAuth authenticates /api requests by signed session token.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie("onelab_session"); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		subject, err := s.sessions.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid session")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
