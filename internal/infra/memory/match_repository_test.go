package memory

import (
	"context"
	"testing"

	"team-duel-service/internal/domain"
)

func sampleMatch() (domain.Match, []domain.Question) {
	m := domain.Match{
		ID:      "m1",
		TeamA:   []string{"a1"},
		TeamB:   []string{"b1"},
		Turn:    domain.TeamA,
		Status:  domain.MatchActive,
		Version: 1,
	}
	qs := []domain.Question{
		{ID: "q1", MatchID: "m1", AssignedTeam: domain.TeamA, Options: []domain.Option{{ID: "o1"}, {ID: "o2"}}, CorrectOption: "o1"},
		{ID: "q2", MatchID: "m1", AssignedTeam: domain.TeamB, Options: []domain.Option{{ID: "o1"}, {ID: "o2"}}, CorrectOption: "o2"},
	}
	return m, qs
}

func TestSaveMatchChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository()
	m, qs := sampleMatch()
	if err := repo.CreateMatch(ctx, m, qs); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.ScoreA = 1
	m.Version = 2
	if err := repo.SaveMatch(ctx, m, 1); err != nil {
		t.Fatalf("save with expected version: %v", err)
	}

	// A writer holding the old version must lose.
	stale := m
	stale.ScoreA = 5
	if err := repo.SaveMatch(ctx, stale, 1); err != domain.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	loaded, err := repo.LoadMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ScoreA != 1 || loaded.Version != 2 {
		t.Fatalf("stale write must not land, got %+v", loaded)
	}
}

func TestLoadMatchReturnsIsolatedCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository()
	m, qs := sampleMatch()
	if err := repo.CreateMatch(ctx, m, qs); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, _ := repo.LoadMatch(ctx, "m1")
	loaded.TeamA[0] = "mutated"
	loaded.ScoreA = 9

	again, _ := repo.LoadMatch(ctx, "m1")
	if again.TeamA[0] != "a1" || again.ScoreA != 0 {
		t.Fatalf("repository state leaked caller mutation: %+v", again)
	}
}

func TestSaveQuestionAndListActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository()
	m, qs := sampleMatch()
	if err := repo.CreateMatch(ctx, m, qs); err != nil {
		t.Fatalf("create: %v", err)
	}

	q := qs[0]
	q.Answered = true
	if err := repo.SaveQuestion(ctx, q); err != nil {
		t.Fatalf("save question: %v", err)
	}
	loaded, err := repo.LoadQuestions(ctx, "m1")
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	answered := 0
	for _, lq := range loaded {
		if lq.Answered {
			answered++
		}
	}
	if answered != 1 {
		t.Fatalf("expected one answered question, got %d", answered)
	}

	active, err := repo.ListActiveMatches(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one active match, got %d err=%v", len(active), err)
	}

	m.Status = domain.MatchCompleted
	m.Version = 2
	if err := repo.SaveMatch(ctx, m, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	active, _ = repo.ListActiveMatches(ctx)
	if len(active) != 0 {
		t.Fatalf("completed match must leave the active list")
	}
}

func TestLoadUnknownMatch(t *testing.T) {
	repo := NewMatchRepository()
	if _, err := repo.LoadMatch(context.Background(), "nope"); err != domain.ErrMatchNotFound {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
	if _, err := repo.LoadQuestions(context.Background(), "nope"); err != domain.ErrMatchNotFound {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}
