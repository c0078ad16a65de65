package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Account is an admin that owns subscriptions, backing the thin
// management-surface auth layer (SPEC_FULL §12).
type Account struct {
	ID           string
	Email        string
	PasswordHash string
}

func (s *Store) CreateAccount(ctx context.Context, email, passwordHash string) (Account, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3)
	`, id, email, passwordHash)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash FROM accounts WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// SubscriptionOwnedBy reports whether the subscription belongs to account,
// so the update and delete handlers can scope access without a join on
// every query.
func (s *Store) SubscriptionOwnedBy(ctx context.Context, subscriptionID, accountID string) (bool, error) {
	var owned bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1 AND account_id = $2)
	`, subscriptionID, accountID).Scan(&owned)
	return owned, err
}
