package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"team-duel-service/internal/app"
	"team-duel-service/internal/domain"
)

type countingSink struct {
	mu      sync.Mutex
	credits map[string]int
	err     error
}

func newCountingSink() *countingSink {
	return &countingSink{credits: make(map[string]int)}
}

func (s *countingSink) CreditPoints(_ context.Context, memberID, _ string, amount int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.credits[memberID] += amount
	return nil
}

func completedMatch(winner domain.Winner) domain.Match {
	return domain.Match{
		ID:           "m1",
		TeamA:        []string{"a1", "a2"},
		TeamB:        []string{"b1", "b2"},
		Status:       domain.MatchCompleted,
		Winner:       winner,
		RewardPoints: 50,
		DrawPoints:   20,
	}
}

func TestSettleCreditsWinningTeamOnce(t *testing.T) {
	sink := newCountingSink()
	distributor := app.NewRewardDistributor(sink, zerolog.Nop())

	m := completedMatch(domain.WinnerTeamA)
	if err := distributor.Settle(context.Background(), &m); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !m.RewardPaid {
		t.Fatalf("rewardPaid must flip")
	}
	if sink.credits["a1"] != 50 || sink.credits["a2"] != 50 {
		t.Fatalf("expected both winners credited 50, got %+v", sink.credits)
	}
	if len(sink.credits) != 2 {
		t.Fatalf("losers must not be credited: %+v", sink.credits)
	}

	if err := distributor.Settle(context.Background(), &m); err != domain.ErrAlreadySettled {
		t.Fatalf("expected ErrAlreadySettled on retry, got %v", err)
	}
	if sink.credits["a1"] != 50 {
		t.Fatalf("retry must not credit again, got %d", sink.credits["a1"])
	}
}

func TestSettleDrawPaysAllMembers(t *testing.T) {
	sink := newCountingSink()
	distributor := app.NewRewardDistributor(sink, zerolog.Nop())

	m := completedMatch(domain.WinnerDraw)
	if err := distributor.Settle(context.Background(), &m); err != nil {
		t.Fatalf("settle: %v", err)
	}
	for _, member := range []string{"a1", "a2", "b1", "b2"} {
		if sink.credits[member] != 20 {
			t.Fatalf("expected %s credited 20, got %d", member, sink.credits[member])
		}
	}
}

func TestSettleDeduplicatesMembers(t *testing.T) {
	sink := newCountingSink()
	distributor := app.NewRewardDistributor(sink, zerolog.Nop())

	m := completedMatch(domain.WinnerTeamA)
	m.TeamA = []string{"a1", "a1"}
	if err := distributor.Settle(context.Background(), &m); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if sink.credits["a1"] != 50 {
		t.Fatalf("duplicated member must be paid once, got %d", sink.credits["a1"])
	}
}

func TestSettleRequiresCompletedMatch(t *testing.T) {
	distributor := app.NewRewardDistributor(newCountingSink(), zerolog.Nop())
	m := completedMatch(domain.WinnerTeamA)
	m.Status = domain.MatchActive

	if err := distributor.Settle(context.Background(), &m); err == nil {
		t.Fatalf("expected settle rejection for active match")
	}
}

func TestSettleSurvivesSinkFailures(t *testing.T) {
	sink := newCountingSink()
	sink.err = errors.New("wallet unavailable")
	distributor := app.NewRewardDistributor(sink, zerolog.Nop())

	m := completedMatch(domain.WinnerTeamB)
	if err := distributor.Settle(context.Background(), &m); err != nil {
		t.Fatalf("sink failures must not fail settlement: %v", err)
	}
	if !m.RewardPaid {
		t.Fatalf("rewardPaid must flip even when the sink is down")
	}
}
