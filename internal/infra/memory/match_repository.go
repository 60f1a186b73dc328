package memory

import (
	"context"
	"fmt"
	"sync"

	"team-duel-service/internal/domain"
)

// MatchRepository is the in-memory implementation of app.MatchRepository,
// used for tests and single-node demo runs. Version compare-and-set
// semantics match the durable implementations.
type MatchRepository struct {
	mu        sync.RWMutex
	matches   map[string]domain.Match
	questions map[string][]domain.Question
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		matches:   make(map[string]domain.Match),
		questions: make(map[string][]domain.Question),
	}
}

func (r *MatchRepository) CreateMatch(_ context.Context, m domain.Match, questions []domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.matches[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	r.matches[m.ID] = m.Clone()
	r.questions[m.ID] = cloneQuestions(questions)
	return nil
}

func (r *MatchRepository) LoadMatch(_ context.Context, matchID string) (domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r *MatchRepository) SaveMatch(_ context.Context, m domain.Match, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matches[m.ID]
	if !ok {
		return domain.ErrMatchNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	r.matches[m.ID] = m.Clone()
	return nil
}

func (r *MatchRepository) LoadQuestions(_ context.Context, matchID string) ([]domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	qs, ok := r.questions[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return cloneQuestions(qs), nil
}

func (r *MatchRepository) SaveQuestion(_ context.Context, q domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	qs, ok := r.questions[q.MatchID]
	if !ok {
		return domain.ErrMatchNotFound
	}
	for i := range qs {
		if qs[i].ID == q.ID {
			qs[i] = cloneQuestion(q)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (r *MatchRepository) ListActiveMatches(_ context.Context) ([]domain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Match, 0)
	for _, m := range r.matches {
		if m.Status == domain.MatchActive {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]domain.Option(nil), q.Options...)
	return q
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = cloneQuestion(q)
	}
	return out
}
