// Package ingestion implements the ingestion contract: a single HTTP
// endpoint that validates a subscription, optionally filters by event
// type, optionally verifies an HMAC signature, and commits the payload
// and its first attempt atomically.
package ingestion

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tidwall/gjson"

	"github.com/webhookrelay/delivery/internal/cache"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/metrics"
	"github.com/webhookrelay/delivery/internal/signing"
	"github.com/webhookrelay/delivery/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB; the source carried no explicit cap, this is a sane one.

type Handler struct {
	Store  *store.Store
	Cache  *cache.Cache
	Logger logging.Logger
}

func New(s *store.Store, c *cache.Cache, logger logging.Logger) *Handler {
	return &Handler{Store: s, Cache: c, Logger: logger}
}

type acceptedResponse struct {
	Status    string `json:"status"`
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}

type skippedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: detail})
}

// Ingest handles POST /webhooks/ingest/{subscription_id}.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriptionID := chi.URLParam(r, "subscription_id")

	sub, err := h.Cache.Get(ctx, subscriptionID, h.Store.GetSubscription)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "unknown subscription")
			return
		}
		h.Logger.Error("ingestion: load subscription", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	eventType := r.Header.Get("X-Webhook-Event")
	if eventType != "" && !sub.AcceptsEvent(eventType) {
		metrics.IngestedTotal.WithLabelValues("skipped").Inc()
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, skippedResponse{Status: "skipped", Message: "event type not in subscription's allowlist"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, r, http.StatusBadRequest, "request body too large")
		return
	}
	if !gjson.ValidBytes(body) {
		metrics.IngestedTotal.WithLabelValues("malformed").Inc()
		writeError(w, r, http.StatusBadRequest, "malformed JSON body")
		return
	}

	// §4.3 step 3: signature is verified only when both sides opt in. The
	// bytes checked here are exactly the bytes persisted below, never a
	// reparsed copy — see internal/signing's doc comment for why that
	// matters.
	if sig := r.Header.Get("X-Hub-Signature-256"); sub.SecretKey != "" && sig != "" {
		if !signing.Verify([]byte(sub.SecretKey), body, sig) {
			metrics.IngestedTotal.WithLabelValues("signature_mismatch").Inc()
			writeError(w, r, http.StatusUnauthorized, "signature mismatch")
			return
		}
	}

	payload, _, err := h.Store.CreatePayloadWithInitialAttempt(ctx, subscriptionID, eventType, body)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionMissing) {
			writeError(w, r, http.StatusNotFound, "unknown subscription")
			return
		}
		h.Logger.Error("ingestion: persist payload", err)
		writeError(w, r, http.StatusInternalServerError, "failed to persist payload")
		return
	}

	metrics.IngestedTotal.WithLabelValues("accepted").Inc()
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, acceptedResponse{Status: "accepted", WebhookID: payload.ID, Message: "webhook accepted for delivery"})
}
