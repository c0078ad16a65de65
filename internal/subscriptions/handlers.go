// Package subscriptions implements the CRUD and query surface that sits
// outside the core delivery pipeline: subscription management, webhook
// status/list lookups, and the stats endpoint.
package subscriptions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tidwall/sjson"

	"github.com/webhookrelay/delivery/internal/adminauth"
	"github.com/webhookrelay/delivery/internal/api"
	"github.com/webhookrelay/delivery/internal/cache"
	"github.com/webhookrelay/delivery/internal/logging"
	"github.com/webhookrelay/delivery/internal/model"
	"github.com/webhookrelay/delivery/internal/store"
)

type Handler struct {
	Store  *store.Store
	Cache  *cache.Cache
	Logger logging.Logger
}

func New(s *store.Store, c *cache.Cache, logger logging.Logger) *Handler {
	return &Handler{Store: s, Cache: c, Logger: logger}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Detail: detail})
}

type subscriptionRequest struct {
	TargetURL  string   `json:"target_url"`
	SecretKey  string   `json:"secret_key,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

type subscriptionResponse struct {
	ID         string   `json:"id"`
	TargetURL  string   `json:"target_url"`
	EventTypes []string `json:"event_types,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func toResponse(s model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:         s.ID,
		TargetURL:  s.TargetURL,
		EventTypes: s.EventTypes,
		CreatedAt:  s.CreatedAt.Format(timeFormat),
		UpdatedAt:  s.UpdatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// Create handles POST /api/v1/subscriptions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := adminauth.AccountFromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "missing account")
		return
	}

	var req subscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TargetURL == "" {
		writeError(w, r, http.StatusBadRequest, "target_url is required")
		return
	}

	sub, err := h.Store.CreateSubscription(r.Context(), store.CreateSubscriptionInput{
		AccountID:  accountID,
		TargetURL:  req.TargetURL,
		SecretKey:  req.SecretKey,
		EventTypes: req.EventTypes,
	})
	if err != nil {
		h.Logger.Error("subscriptions: create", err)
		writeError(w, r, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	if err := h.Cache.Invalidate(r.Context(), sub.ID); err != nil {
		h.Logger.Error("subscriptions: cache invalidate", err)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toResponse(sub))
}

// List handles GET /api/v1/subscriptions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := adminauth.AccountFromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "missing account")
		return
	}

	skip := api.ValidateSkip(atoiOr(r.URL.Query().Get("skip"), 0))
	limit := api.ValidateLimit(atoiOr(r.URL.Query().Get("limit"), 0))

	subs, err := h.Store.ListSubscriptions(r.Context(), accountID, skip, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toResponse(s))
	}
	render.JSON(w, r, out)
}

// Get handles GET /api/v1/subscriptions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.Store.GetSubscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	render.JSON(w, r, toResponse(sub))
}

// Update handles PUT /api/v1/subscriptions/{id}; a zero-valued field in
// the request body leaves the corresponding column untouched (§3: only
// target_url, secret_key, event_types are mutable).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	accountID, err := adminauth.AccountFromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "missing account")
		return
	}
	owned, err := h.Store.SubscriptionOwnedBy(r.Context(), id, accountID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to verify subscription ownership")
		return
	}
	if !owned {
		writeError(w, r, http.StatusNotFound, "subscription not found")
		return
	}

	var req subscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	in := store.UpdateSubscriptionInput{}
	if req.TargetURL != "" {
		in.TargetURL = &req.TargetURL
	}
	if req.SecretKey != "" {
		in.SecretKey = &req.SecretKey
	}
	if req.EventTypes != nil {
		in.EventTypes = &req.EventTypes
	}

	sub, err := h.Store.UpdateSubscription(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	if err := h.Cache.Invalidate(r.Context(), id); err != nil {
		h.Logger.Error("subscriptions: cache invalidate", err)
	}
	render.JSON(w, r, toResponse(sub))
}

// Delete handles DELETE /api/v1/subscriptions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	accountID, err := adminauth.AccountFromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "missing account")
		return
	}
	owned, err := h.Store.SubscriptionOwnedBy(r.Context(), id, accountID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to verify subscription ownership")
		return
	}
	if !owned {
		writeError(w, r, http.StatusNotFound, "subscription not found")
		return
	}

	if err := h.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if err := h.Cache.Invalidate(r.Context(), id); err != nil {
		h.Logger.Error("subscriptions: cache invalidate", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptResponse struct {
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
	StatusCode    *int   `json:"status_code,omitempty"`
	ErrorDetails  string `json:"error_details,omitempty"`
	AttemptedAt   string `json:"attempt_timestamp"`
}

// Status handles GET /api/v1/webhooks/{id}/status: the ordered list of
// attempts for one payload.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.GetPayload(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to load webhook")
		return
	}

	attempts, err := h.Store.ListAttemptsByPayload(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list attempts")
		return
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		var errDetails string
		if a.ErrorDetails != nil {
			errDetails = *a.ErrorDetails
		}
		out = append(out, attemptResponse{
			AttemptNumber: a.AttemptNumber,
			Status:        string(a.Status),
			StatusCode:    a.StatusCode,
			ErrorDetails:  errDetails,
			AttemptedAt:   a.AttemptTimestamp.Format(timeFormat),
		})
	}
	render.JSON(w, r, out)
}

type payloadResponse struct {
	ID        string `json:"id"`
	EventType string `json:"event_type,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ListBySubscription handles GET /api/v1/webhooks/subscription/{id}.
func (h *Handler) ListBySubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.GetSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	skip := api.ValidateSkip(atoiOr(r.URL.Query().Get("skip"), 0))
	limit := api.ValidateLimit(atoiOr(r.URL.Query().Get("limit"), 0))

	payloads, err := h.Store.ListPayloadsBySubscription(r.Context(), id, skip, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	out := make([]payloadResponse, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, payloadResponse{ID: p.ID, EventType: p.EventType, CreatedAt: p.CreatedAt.Format(timeFormat)})
	}
	render.JSON(w, r, out)
}

// Stats handles GET /api/v1/stats/subscription/{id}. The top-level shape
// is fixed (§6), but by_status is a dynamic set of keys depending on
// which statuses actually occurred, so it's assembled with sjson rather
// than a struct with one field per model.Status value.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.GetSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	stats, byStatus, err := h.Store.AggregateStats(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to aggregate stats")
		return
	}

	body := `{}`
	body, _ = sjson.Set(body, "total", stats.Total)
	body, _ = sjson.Set(body, "success", stats.Success)
	body, _ = sjson.Set(body, "failure", stats.Failure)
	body, _ = sjson.Set(body, "pending", stats.Pending)
	body, _ = sjson.Set(body, "success_rate", stats.SuccessRate)
	for status, count := range byStatus {
		body, _ = sjson.Set(body, "by_status."+status, count)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
