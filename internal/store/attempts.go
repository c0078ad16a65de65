package store

import (
	"context"
	"time"

	"github.com/webhookrelay/delivery/internal/model"
)

// ClaimDueAttempts selects up to limit attempts that are due, marks them
// CLAIMED so a concurrent worker's identical query skips them, and
// returns each joined with its Payload and Subscription snapshot.
// Ordering is next_attempt_at ascending.
func (s *Store) ClaimDueAttempts(ctx context.Context, limit int, now time.Time, maxRetryAttempts int) ([]model.ClaimedAttempt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE delivery_logs d
		SET status = $1, claimed_at = $2
		FROM (
			SELECT id FROM delivery_logs
			WHERE status IN ($3, $4)
			  AND next_attempt_at <= $2
			  AND attempt_number <= $5
			ORDER BY next_attempt_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		) due
		WHERE d.id = due.id
		RETURNING
			d.id, d.webhook_id, d.subscription_id, d.attempt_number, d.status,
			d.status_code, d.error_details, d.attempt_timestamp, d.next_attempt_at, d.claimed_at
	`, model.StatusClaimed, now, model.StatusPending, model.StatusFailedAttempt, maxRetryAttempts, limit)
	if err != nil {
		return nil, err
	}

	var claimed []model.ClaimedAttempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(
			&a.ID, &a.PayloadID, &a.SubscriptionID, &a.AttemptNumber, &a.Status,
			&a.StatusCode, &a.ErrorDetails, &a.AttemptTimestamp, &a.NextAttemptAt, &a.ClaimedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, model.ClaimedAttempt{Attempt: a})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, tx.Commit(ctx)
	}

	for i := range claimed {
		payload, err := fetchPayload(ctx, tx, claimed[i].Attempt.PayloadID)
		if err != nil {
			return nil, err
		}
		sub, err := fetchSubscription(ctx, tx, claimed[i].Attempt.SubscriptionID)
		if err != nil {
			return nil, err
		}
		claimed[i].Payload = payload
		claimed[i].Subscription = sub
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateAttemptInput is a partial update; nil fields are left untouched.
type UpdateAttemptInput struct {
	Status        model.Status
	StatusCode    *int
	ErrorDetails  *string
	NextAttemptAt *time.Time
	ClearNext     bool // true clears next_attempt_at even though NextAttemptAt is nil
}

func (s *Store) UpdateAttempt(ctx context.Context, id int64, in UpdateAttemptInput) (model.Attempt, error) {
	var a model.Attempt
	err := s.pool.QueryRow(ctx, `
		UPDATE delivery_logs SET
			status = $2,
			status_code = COALESCE($3, status_code),
			error_details = COALESCE($4, error_details),
			next_attempt_at = CASE WHEN $6::boolean THEN NULL ELSE COALESCE($5, next_attempt_at) END,
			claimed_at = NULL
		WHERE id = $1
		RETURNING id, webhook_id, subscription_id, attempt_number, status, status_code, error_details, attempt_timestamp, next_attempt_at, claimed_at
	`, id, in.Status, in.StatusCode, in.ErrorDetails, in.NextAttemptAt, in.ClearNext).Scan(
		&a.ID, &a.PayloadID, &a.SubscriptionID, &a.AttemptNumber, &a.Status,
		&a.StatusCode, &a.ErrorDetails, &a.AttemptTimestamp, &a.NextAttemptAt, &a.ClaimedAt,
	)
	return a, err
}

// CreateNextAttempt inserts attempt n+1 as PENDING, scheduled per the
// backoff schedule the caller already computed for nextAttemptAt.
func (s *Store) CreateNextAttempt(ctx context.Context, previous model.Attempt, nextAttemptAt time.Time) (model.Attempt, error) {
	var a model.Attempt
	err := s.pool.QueryRow(ctx, `
		INSERT INTO delivery_logs (webhook_id, subscription_id, attempt_number, status, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, webhook_id, subscription_id, attempt_number, status, status_code, error_details, attempt_timestamp, next_attempt_at, claimed_at
	`, previous.PayloadID, previous.SubscriptionID, previous.AttemptNumber+1, model.StatusPending, nextAttemptAt).Scan(
		&a.ID, &a.PayloadID, &a.SubscriptionID, &a.AttemptNumber, &a.Status,
		&a.StatusCode, &a.ErrorDetails, &a.AttemptTimestamp, &a.NextAttemptAt, &a.ClaimedAt,
	)
	return a, err
}

// ReclaimStuckAttempts reverts CLAIMED rows whose claim is older than
// olderThan back to PENDING, so a worker that crashed mid-cycle doesn't
// strand its batch forever (§7's "in-flight marker MUST have a timeout"
// requirement). Every claimable row is created PENDING (the initial
// attempt and each scheduled retry), so PENDING is the status it held
// before the claim; next_attempt_at = now() makes it immediately
// eligible again.
func (s *Store) ReclaimStuckAttempts(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_logs
		SET status = $1, claimed_at = NULL, next_attempt_at = now()
		WHERE status = $2 AND claimed_at < $3
	`, model.StatusPending, model.StatusClaimed, olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteAttemptsOlderThan(ctx context.Context, threshold time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM delivery_logs WHERE attempt_timestamp < $1
	`, threshold)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListAttemptsByPayload(ctx context.Context, payloadID string) ([]model.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, webhook_id, subscription_id, attempt_number, status, status_code, error_details, attempt_timestamp, next_attempt_at, claimed_at
		FROM delivery_logs
		WHERE webhook_id = $1
		ORDER BY attempt_number ASC
	`, payloadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.PayloadID, &a.SubscriptionID, &a.AttemptNumber, &a.Status,
			&a.StatusCode, &a.ErrorDetails, &a.AttemptTimestamp, &a.NextAttemptAt, &a.ClaimedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
