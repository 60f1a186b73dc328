package app

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TurnSweeper keeps matches advancing when the team on turn goes idle
// past the soft per-question time limit: it pushes a synthetic incorrect
// answer through the regular submission path. The limit is advisory, so
// the sweep cadence only bounds how late an expiry can fire.
type TurnSweeper struct {
	manager  *CompetitionManager
	repo     MatchRepository
	interval time.Duration
	log      zerolog.Logger
	sched    gocron.Scheduler
}

func NewTurnSweeper(manager *CompetitionManager, repo MatchRepository, interval time.Duration, log zerolog.Logger) *TurnSweeper {
	return &TurnSweeper{
		manager:  manager,
		repo:     repo,
		interval: interval,
		log:      log,
	}
}

// Start schedules the periodic sweep. A zero or negative interval
// disables the sweeper.
func (s *TurnSweeper) Start() error {
	if s.interval <= 0 {
		return nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.SweepOnce(context.Background())
		}),
	); err != nil {
		return err
	}
	sched.Start()
	s.sched = sched
	s.log.Info().Dur("interval", s.interval).Msg("turn sweeper started")
	return nil
}

func (s *TurnSweeper) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// SweepOnce scans active matches and expires overdue turns. Returns how
// many turns were consumed.
func (s *TurnSweeper) SweepOnce(ctx context.Context) int {
	matches, err := s.repo.ListActiveMatches(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: list active matches")
		return 0
	}
	expired := 0
	for _, m := range matches {
		_, acted, err := s.manager.ExpireTurn(ctx, m.ID)
		if err != nil {
			s.log.Error().Err(err).Str("matchID", m.ID).Msg("sweep: expire turn")
			continue
		}
		if acted {
			expired++
		}
	}
	return expired
}
