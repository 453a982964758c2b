package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/onelab-hq/onelab-server/internal/store"
)

// signatureHeader carries the payment provider's HMAC over the raw body.
const signatureHeader = "X-Webhook-Signature"

type webhookEvent struct {
	Event           string `json:"event"`
	UserID          string `json:"user_id"`
	PackageID       string `json:"package_id"`
	SubscriptionRef string `json:"subscription_ref"`
}

// handlePaymentWebhook applies payment provider events to the ledger.
// Signature verification happens before the body is even parsed; a forged or
// damaged request can never reach a ledger mutation.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		respondError(w, http.StatusNotFound, "Webhooks disabled")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable body")
		return
	}
	if !s.webhooks.Verify(body, r.Header.Get(signatureHeader)) {
		respondError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if ev.UserID == "" {
		respondError(w, http.StatusBadRequest, "Missing user_id")
		return
	}
	s.collector.RecordWebhookEvent(ev.Event)

	ctx := r.Context()
	if _, err := s.credits.GetOrCreateProfile(ctx, ev.UserID, "", ""); err != nil {
		s.logger.Printf("[http] webhook ensure profile %s: %v", ev.UserID, err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	switch ev.Event {
	case "checkout.completed":
		pkg, ok := s.catalog.FindPackage(ev.PackageID)
		if !ok {
			respondError(w, http.StatusBadRequest, "Unknown package")
			return
		}
		if pkg.Unlimited {
			if err := s.credits.UpdatePlan(ctx, ev.UserID, store.PlanUnlimited, ev.SubscriptionRef); err != nil {
				s.logger.Printf("[http] webhook plan update %s: %v", ev.UserID, err)
				respondError(w, http.StatusInternalServerError, "Internal error")
				return
			}
		} else {
			desc := fmt.Sprintf("Purchased %d credits (%s)", pkg.Credits, pkg.ID)
			if _, err := s.credits.AddCredits(ctx, ev.UserID, pkg.Credits, store.TransactionPurchase, desc); err != nil {
				s.logger.Printf("[http] webhook credit %s: %v", ev.UserID, err)
				respondError(w, http.StatusInternalServerError, "Internal error")
				return
			}
			if plan, err := store.ParsePlan(pkg.ID); err == nil {
				if err := s.credits.UpdatePlan(ctx, ev.UserID, plan, ""); err != nil {
					s.logger.Printf("[http] webhook plan update %s: %v", ev.UserID, err)
					respondError(w, http.StatusInternalServerError, "Internal error")
					return
				}
			}
		}
	case "subscription.updated", "subscription.renewed":
		if err := s.credits.UpdatePlan(ctx, ev.UserID, store.PlanUnlimited, ev.SubscriptionRef); err != nil {
			s.logger.Printf("[http] webhook plan update %s: %v", ev.UserID, err)
			respondError(w, http.StatusInternalServerError, "Internal error")
			return
		}
	case "subscription.canceled":
		if err := s.credits.UpdatePlan(ctx, ev.UserID, store.PlanFree, ""); err != nil {
			s.logger.Printf("[http] webhook plan update %s: %v", ev.UserID, err)
			respondError(w, http.StatusInternalServerError, "Internal error")
			return
		}
	default:
		// Unrecognized events are acknowledged so the provider stops retrying.
		s.logger.Printf("[http] webhook ignoring event %q", ev.Event)
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
