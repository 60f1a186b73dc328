package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"team-duel-service/internal/domain"
)

// RewardSink credits points to a member's account (the portal's wallet,
// a points table, etc). Implementations are expected to be idempotent
// per (memberID, matchID); the distributor's rewardPaid guard already
// prevents duplicate calls in the normal path.
type RewardSink interface {
	CreditPoints(ctx context.Context, memberID, matchID string, amount int, reason string) error
}

// RewardDistributor pays out a completed match exactly once.
type RewardDistributor struct {
	sink RewardSink
	log  zerolog.Logger
}

func NewRewardDistributor(sink RewardSink, log zerolog.Logger) *RewardDistributor {
	return &RewardDistributor{sink: sink, log: log}
}

// Settle credits every member of the winning team with the match's
// reward points, or every participant with the draw points on a tie.
// The rewardPaid flag flips false→true exactly once; any retry is a
// no-op returning ErrAlreadySettled. Sink failures are logged and do
// not roll the settlement back: the sink's own idempotence key covers
// redelivery.
func (d *RewardDistributor) Settle(ctx context.Context, m *domain.Match) error {
	if m.Status != domain.MatchCompleted {
		return fmt.Errorf("settle: match %s is not completed", m.ID)
	}
	if m.RewardPaid {
		return domain.ErrAlreadySettled
	}

	var recipients []string
	amount := m.RewardPoints
	reason := "duel win"
	switch m.Winner {
	case domain.WinnerTeamA:
		recipients = m.TeamA
	case domain.WinnerTeamB:
		recipients = m.TeamB
	case domain.WinnerDraw:
		recipients = append(append([]string(nil), m.TeamA...), m.TeamB...)
		amount = m.DrawPoints
		reason = "duel draw"
	}

	seen := make(map[string]struct{}, len(recipients))
	for _, memberID := range recipients {
		if _, dup := seen[memberID]; dup {
			continue
		}
		seen[memberID] = struct{}{}
		if amount <= 0 {
			continue
		}
		if err := d.sink.CreditPoints(ctx, memberID, m.ID, amount, reason); err != nil {
			d.log.Error().Err(err).
				Str("matchID", m.ID).
				Str("memberID", memberID).
				Int("amount", amount).
				Msg("reward credit failed; sink retries on its own policy")
		}
	}

	m.RewardPaid = true
	return nil
}
