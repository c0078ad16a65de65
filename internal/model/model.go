// Package model holds the data types shared across the store, cache,
// ingestion, delivery and worker packages. Subscription, Payload and
// Attempt reference each other only by ID (never by embedded pointer) so
// the three stay plain rows with directed foreign keys at the store
// boundary, not a cyclic in-memory object graph.
package model

import "time"

// Status is the single tagged variant for an Attempt's lifecycle. The
// store maps it to a text column and the HTTP layer maps it to the same
// string, so there is exactly one representation of the enum in the
// source, not one for persistence and one for transport.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusFailedAttempt Status = "FAILED_ATTEMPT"
	StatusSuccess       Status = "SUCCESS"
	StatusFailure       Status = "FAILURE"

	// StatusClaimed is never returned to a producer and never appears in
	// spec-facing documentation of the state machine: it is the in-flight
	// marker a worker writes while a row is claimed, so a second worker's
	// claim query (status IN (PENDING, FAILED_ATTEMPT)) skips it. A claim
	// that never resolves because its worker crashed is reverted back to
	// its prior status by the reclaim sweep once ClaimTimeout elapses.
	StatusClaimed Status = "CLAIMED"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Subscription is the delivery target. TargetURL, SecretKey and
// EventTypes are the only mutable fields (§3); everything else is set at
// creation.
type Subscription struct {
	ID         string
	TargetURL  string
	SecretKey  string
	EventTypes []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AcceptsEvent reports whether an event type should be delivered to this
// subscription. An empty EventTypes allowlist accepts everything.
func (s Subscription) AcceptsEvent(eventType string) bool {
	if len(s.EventTypes) == 0 || eventType == "" {
		return true
	}
	for _, et := range s.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// Payload is one received webhook body. Body is kept as the exact bytes
// the producer sent — it is never reserialized — so the signature
// computed at ingestion time can be recomputed identically at delivery
// time and on any later re-delivery.
type Payload struct {
	ID             string
	SubscriptionID string
	EventType      string
	Body           []byte
	CreatedAt      time.Time
}

// Attempt is one delivery try for a Payload.
type Attempt struct {
	ID              int64
	PayloadID       string
	SubscriptionID  string
	AttemptNumber   int
	Status          Status
	StatusCode      *int
	ErrorDetails    *string
	AttemptTimestamp time.Time
	NextAttemptAt   *time.Time
	ClaimedAt       *time.Time
}

// ClaimedAttempt bundles an Attempt with the Payload and Subscription
// snapshot claim_due_attempts joins in, per §4.1.
type ClaimedAttempt struct {
	Attempt      Attempt
	Payload      Payload
	Subscription Subscription
}

// Stats is the aggregate view of §6's /stats endpoint.
type Stats struct {
	SubscriptionID string
	Total          int
	Success        int
	Failure        int
	Pending        int
	SuccessRate    float64
}
