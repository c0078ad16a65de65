package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/webhookrelay/delivery/internal/model"
)

type CreateSubscriptionInput struct {
	AccountID  string
	TargetURL  string
	SecretKey  string
	EventTypes []string
}

func (s *Store) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (model.Subscription, error) {
	id := uuid.NewString()
	if in.EventTypes == nil {
		in.EventTypes = []string{}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (id, account_id, target_url, secret_key, event_types)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, target_url, secret_key, event_types, created_at, updated_at
	`, id, in.AccountID, in.TargetURL, in.SecretKey, in.EventTypes)
	return scanSubscription(row)
}

func (s *Store) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, target_url, secret_key, event_types, created_at, updated_at
		FROM subscriptions WHERE id = $1
	`, id)
	return scanSubscription(row)
}

type UpdateSubscriptionInput struct {
	TargetURL  *string
	SecretKey  *string
	EventTypes *[]string
}

func (s *Store) UpdateSubscription(ctx context.Context, id string, in UpdateSubscriptionInput) (model.Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE subscriptions SET
			target_url  = COALESCE($2, target_url),
			secret_key  = COALESCE($3, secret_key),
			event_types = COALESCE($4, event_types),
			updated_at  = now()
		WHERE id = $1
		RETURNING id, target_url, secret_key, event_types, created_at, updated_at
	`, id, in.TargetURL, in.SecretKey, in.EventTypes)
	return scanSubscription(row)
}

// DeleteSubscription cascades to payloads and attempts via the foreign
// key ON DELETE CASCADE declared in the schema (§3).
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, accountID string, skip, limit int) ([]model.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_url, secret_key, event_types, created_at, updated_at
		FROM subscriptions
		WHERE account_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, accountID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
	var sub model.Subscription
	var createdAt, updatedAt time.Time
	err := row.Scan(&sub.ID, &sub.TargetURL, &sub.SecretKey, &sub.EventTypes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Subscription{}, ErrNotFound
		}
		return model.Subscription{}, err
	}
	sub.CreatedAt, sub.UpdatedAt = createdAt, updatedAt
	return sub, nil
}
