package app

import "team-duel-service/internal/domain"

// Transition is the turn engine's verdict for one accepted answer.
type Transition struct {
	Turn   domain.TeamSide
	Status domain.MatchStatus
	Winner domain.Winner
	// Completed is true only on the Active→Completed edge, which is when
	// the reward distributor must run.
	Completed bool
}

// NextState computes the follow-up state after the answering team
// consumed its current question. Pure function: exhaustion flags reflect
// the pool state after the question was marked answered.
//
// The turn flips to the opponent unless their pool is exhausted, in
// which case it stays with the answering team while they still have
// questions. When both pools are empty the match completes and the
// winner is fixed from the final scores, ties resolving to a draw.
func NextState(m domain.Match, answering domain.TeamSide, ownExhausted, opponentExhausted bool) (Transition, error) {
	if m.Status == domain.MatchCompleted {
		return Transition{}, domain.ErrMatchClosed
	}

	if opponentExhausted && ownExhausted {
		return Transition{
			Turn:      domain.TeamNone,
			Status:    domain.MatchCompleted,
			Winner:    decideWinner(m),
			Completed: true,
		}, nil
	}

	next := answering.Opponent()
	if opponentExhausted {
		next = answering
	}
	return Transition{
		Turn:   next,
		Status: domain.MatchActive,
		Winner: domain.WinnerNone,
	}, nil
}

func decideWinner(m domain.Match) domain.Winner {
	switch {
	case m.ScoreA > m.ScoreB:
		return domain.WinnerTeamA
	case m.ScoreB > m.ScoreA:
		return domain.WinnerTeamB
	default:
		return domain.WinnerDraw
	}
}
