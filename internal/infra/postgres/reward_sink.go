package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// RewardSink credits points into the member_points table. The primary
// key on (member_id, match_id) makes the credit idempotent, so sink
// retries after partial failures never pay a member twice.
type RewardSink struct {
	pool *pgxpool.Pool
}

func NewRewardSink(pool *pgxpool.Pool) *RewardSink {
	return &RewardSink{pool: pool}
}

func (s *RewardSink) CreditPoints(ctx context.Context, memberID, matchID string, amount int, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO member_points (member_id, match_id, points, reason, credited_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (member_id, match_id) DO NOTHING`,
		memberID, matchID, amount, reason)
	if err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}
