// Package adminauth gates subscription create/list/update/delete
// (SPEC_FULL §12) behind a JWT bearer token; the subscription get-by-id,
// webhook status/list and stats routes are served without it. Ingestion and the outbound
// delivery contract never touch this package — they are, by spec,
// reachable by any producer that knows a subscription ID.
package adminauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const accountKey contextKey = "account_id"

type Middleware struct {
	Secret []byte
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateJWT(strings.TrimSpace(parts[1]), m.Secret)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, claims.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AccountFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(accountKey).(string)
	if !ok || id == "" {
		return "", errors.New("adminauth: missing account in context")
	}
	return id, nil
}
