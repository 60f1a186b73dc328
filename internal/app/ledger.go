package app

import "team-duel-service/internal/domain"

// ScoringLedger applies score deltas to a match. It must only be called
// while the caller holds the match's serialization unit, so the
// read-modify-write on the team score is atomic with respect to other
// answers on the same match.
type ScoringLedger struct{}

// Apply adds delta (1 for a correct answer, 0 for an incorrect one that
// still consumes the turn) to the team's score and returns the new
// value. A given question reaches Apply at most once because the pool's
// MarkAnswered compare-and-set filters out the losing racers first.
func (ScoringLedger) Apply(m *domain.Match, team domain.TeamSide, delta int) int {
	switch team {
	case domain.TeamA:
		m.ScoreA += delta
		return m.ScoreA
	case domain.TeamB:
		m.ScoreB += delta
		return m.ScoreB
	}
	return 0
}
