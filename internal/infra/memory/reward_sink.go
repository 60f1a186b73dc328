package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// RewardSink records credited points in memory, deduplicated per
// (member, match) like the durable sink. Default wiring when no
// Postgres is configured; tests use Credited to assert payouts.
type RewardSink struct {
	log zerolog.Logger

	mu      sync.Mutex
	credits map[creditKey]int
}

type creditKey struct {
	memberID string
	matchID  string
}

func NewRewardSink(log zerolog.Logger) *RewardSink {
	return &RewardSink{log: log, credits: make(map[creditKey]int)}
}

func (s *RewardSink) CreditPoints(_ context.Context, memberID, matchID string, amount int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := creditKey{memberID: memberID, matchID: matchID}
	if _, dup := s.credits[key]; dup {
		return nil
	}
	s.credits[key] = amount
	s.log.Info().
		Str("memberID", memberID).
		Str("matchID", matchID).
		Int("amount", amount).
		Str("reason", reason).
		Msg("points credited")
	return nil
}

// Credited returns the points credited to a member for a match, or zero.
func (s *RewardSink) Credited(memberID, matchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[creditKey{memberID: memberID, matchID: matchID}]
}

// CreditCount returns how many distinct (member, match) credits landed.
func (s *RewardSink) CreditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.credits)
}
