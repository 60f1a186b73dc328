package app

import (
	"sort"

	"team-duel-service/internal/domain"
)

// QuestionPool holds the loaded question set of one match for the
// duration of a single transition. Next/MarkAnswered operate on the
// in-memory copy; the manager persists the mutated question afterwards
// under the match's serialization unit.
type QuestionPool struct {
	questions []domain.Question
}

// NewQuestionPool orders the questions by (team, orderIndex) and wraps
// them for lookup.
func NewQuestionPool(questions []domain.Question) *QuestionPool {
	qs := append([]domain.Question(nil), questions...)
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].AssignedTeam != qs[j].AssignedTeam {
			return qs[i].AssignedTeam < qs[j].AssignedTeam
		}
		return qs[i].OrderIndex < qs[j].OrderIndex
	})
	return &QuestionPool{questions: qs}
}

// Next returns the lowest-order unanswered question assigned to the
// team, or false when the team's pool is exhausted.
func (p *QuestionPool) Next(team domain.TeamSide) (domain.Question, bool) {
	for _, q := range p.questions {
		if q.AssignedTeam == team && !q.Answered {
			return q, true
		}
	}
	return domain.Question{}, false
}

// Get looks a question up by ID.
func (p *QuestionPool) Get(questionID string) (domain.Question, bool) {
	for _, q := range p.questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

// MarkAnswered flips the answered flag false→true. The second return is
// false when the question was already answered, which is the signal for
// the benign teammate race: the caller must not score again.
func (p *QuestionPool) MarkAnswered(questionID string) (domain.Question, bool) {
	for i := range p.questions {
		if p.questions[i].ID != questionID {
			continue
		}
		if p.questions[i].Answered {
			return p.questions[i], false
		}
		p.questions[i].Answered = true
		return p.questions[i], true
	}
	return domain.Question{}, false
}

// Exhausted reports whether the team has no unanswered questions left.
func (p *QuestionPool) Exhausted(team domain.TeamSide) bool {
	_, ok := p.Next(team)
	return !ok
}

// Remaining counts the unanswered questions assigned to the team.
func (p *QuestionPool) Remaining(team domain.TeamSide) int {
	n := 0
	for _, q := range p.questions {
		if q.AssignedTeam == team && !q.Answered {
			n++
		}
	}
	return n
}
