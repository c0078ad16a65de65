package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/webhookrelay/delivery/internal/model"
)

func fetchPayload(ctx context.Context, tx pgx.Tx, id string) (model.Payload, error) {
	var p model.Payload
	var eventType *string
	err := tx.QueryRow(ctx, `
		SELECT id, subscription_id, event_type, body, created_at
		FROM webhook_payloads WHERE id = $1
	`, id).Scan(&p.ID, &p.SubscriptionID, &eventType, &p.Body, &p.CreatedAt)
	if err != nil {
		return model.Payload{}, err
	}
	if eventType != nil {
		p.EventType = *eventType
	}
	return p, nil
}

func fetchSubscription(ctx context.Context, tx pgx.Tx, id string) (model.Subscription, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, target_url, secret_key, event_types, created_at, updated_at
		FROM subscriptions WHERE id = $1
	`, id)
	return scanSubscription(row)
}
