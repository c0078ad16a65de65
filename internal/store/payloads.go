package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/webhookrelay/delivery/internal/model"
)

// CreatePayloadWithInitialAttempt inserts the Payload and its attempt #1
// in one transaction, failing with ErrSubscriptionMissing if the
// subscription does not exist. The initial attempt is PENDING with
// next_attempt_at = now(), so the very next poll can claim it.
func (s *Store) CreatePayloadWithInitialAttempt(ctx context.Context, subscriptionID, eventType string, body []byte) (model.Payload, model.Attempt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Payload{}, model.Attempt{}, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, subscriptionID).Scan(&exists); err != nil {
		return model.Payload{}, model.Attempt{}, err
	}
	if !exists {
		return model.Payload{}, model.Attempt{}, ErrSubscriptionMissing
	}

	payload := model.Payload{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Body:           body,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO webhook_payloads (id, subscription_id, event_type, body)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING created_at
	`, payload.ID, payload.SubscriptionID, payload.EventType, payload.Body).Scan(&payload.CreatedAt); err != nil {
		return model.Payload{}, model.Attempt{}, err
	}

	var attempt model.Attempt
	if err := tx.QueryRow(ctx, `
		INSERT INTO delivery_logs (webhook_id, subscription_id, attempt_number, status, next_attempt_at)
		VALUES ($1, $2, 1, $3, now())
		RETURNING id, attempt_number, status, attempt_timestamp, next_attempt_at
	`, payload.ID, subscriptionID, model.StatusPending).Scan(
		&attempt.ID, &attempt.AttemptNumber, &attempt.Status, &attempt.AttemptTimestamp, &attempt.NextAttemptAt,
	); err != nil {
		return model.Payload{}, model.Attempt{}, err
	}
	attempt.PayloadID = payload.ID
	attempt.SubscriptionID = subscriptionID

	if err := tx.Commit(ctx); err != nil {
		return model.Payload{}, model.Attempt{}, err
	}
	return payload, attempt, nil
}

func (s *Store) GetPayload(ctx context.Context, id string) (model.Payload, error) {
	var p model.Payload
	var eventType *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, subscription_id, event_type, body, created_at
		FROM webhook_payloads WHERE id = $1
	`, id).Scan(&p.ID, &p.SubscriptionID, &eventType, &p.Body, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Payload{}, ErrNotFound
		}
		return model.Payload{}, err
	}
	if eventType != nil {
		p.EventType = *eventType
	}
	return p, nil
}

func (s *Store) ListPayloadsBySubscription(ctx context.Context, subscriptionID string, skip, limit int) ([]model.Payload, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, event_type, body, created_at
		FROM webhook_payloads
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, subscriptionID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payload
	for rows.Next() {
		var p model.Payload
		var eventType *string
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &eventType, &p.Body, &p.CreatedAt); err != nil {
			return nil, err
		}
		if eventType != nil {
			p.EventType = *eventType
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
