package store

import (
	"context"

	"github.com/webhookrelay/delivery/internal/model"
)

// AggregateStats returns counts by terminal/non-terminal status for a
// subscription, plus the per-status breakdown the stats handler uses to
// build its dynamic by_status map (§6, SPEC_FULL §11).
func (s *Store) AggregateStats(ctx context.Context, subscriptionID string) (model.Stats, map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM delivery_logs WHERE subscription_id = $1 GROUP BY status
	`, subscriptionID)
	if err != nil {
		return model.Stats{}, nil, err
	}
	defer rows.Close()

	byStatus := map[string]int{}
	stats := model.Stats{SubscriptionID: subscriptionID}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.Stats{}, nil, err
		}
		byStatus[status] = count
		stats.Total += count
		switch model.Status(status) {
		case model.StatusSuccess:
			stats.Success = count
		case model.StatusFailure:
			stats.Failure = count
		case model.StatusPending, model.StatusFailedAttempt, model.StatusClaimed:
			stats.Pending += count
		}
	}
	if err := rows.Err(); err != nil {
		return model.Stats{}, nil, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total)
	}
	return stats, byStatus, nil
}
