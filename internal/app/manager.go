package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"team-duel-service/internal/domain"
)

// MatchRepository abstracts how matches and their questions are stored
// (in-memory, Redis, Postgres). SaveMatch must implement compare-and-set
// on the version column and fail with domain.ErrVersionConflict when a
// concurrent writer got there first.
type MatchRepository interface {
	LoadMatch(ctx context.Context, matchID string) (domain.Match, error)
	SaveMatch(ctx context.Context, m domain.Match, expectedVersion int64) error
	LoadQuestions(ctx context.Context, matchID string) ([]domain.Question, error)
	SaveQuestion(ctx context.Context, q domain.Question) error
	CreateMatch(ctx context.Context, m domain.Match, questions []domain.Question) error
	ListActiveMatches(ctx context.Context) ([]domain.Match, error)
}

// MemberDirectory resolves member IDs to display names. It is consumed
// only for view assembly, never for match logic.
type MemberDirectory interface {
	Resolve(ctx context.Context, memberIDs []string) (map[string]string, error)
}

// maxSaveAttempts bounds the reload-and-retry loop on version conflicts.
const maxSaveAttempts = 3

// CompetitionManager orchestrates the duel engine: it owns the per-match
// serialization unit and drives pool → ledger → turn engine → reward
// distributor as one logical transaction per submission.
type CompetitionManager struct {
	repo      MatchRepository
	ledger    ScoringLedger
	rewards   *RewardDistributor
	directory MemberDirectory
	notifier  Notifier
	log       zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCompetitionManager(repo MatchRepository, rewards *RewardDistributor, directory MemberDirectory, notifier Notifier, log zerolog.Logger) *CompetitionManager {
	return NewCompetitionManagerWithClock(repo, rewards, directory, notifier, log, time.Now)
}

// NewCompetitionManagerWithClock allows deterministic timestamps in tests.
func NewCompetitionManagerWithClock(repo MatchRepository, rewards *RewardDistributor, directory MemberDirectory, notifier Notifier, log zerolog.Logger, now func() time.Time) *CompetitionManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &CompetitionManager{
		repo:      repo,
		rewards:   rewards,
		directory: directory,
		notifier:  notifier,
		log:       log,
		now:       now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing all transitions of one match.
// Different matches proceed in parallel with no coordination.
func (cm *CompetitionManager) lockFor(matchID string) *sync.Mutex {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	l, ok := cm.locks[matchID]
	if !ok {
		l = &sync.Mutex{}
		cm.locks[matchID] = l
	}
	return l
}

// QuestionSpec is the authoring input for one pool entry. Option IDs are
// minted when left empty.
type QuestionSpec struct {
	AssignedTeam  domain.TeamSide `json:"assignedTeam"`
	Prompt        string          `json:"prompt"`
	Options       []domain.Option `json:"options"`
	CorrectOption string          `json:"correctOption"`
}

// MatchParams is the authoring hand-off: a match plus its question set,
// created atomically before play starts.
type MatchParams struct {
	TeamA            []string        `json:"teamA"`
	TeamB            []string        `json:"teamB"`
	StartingTurn     domain.TeamSide `json:"startingTurn"`
	RewardPoints     int             `json:"rewardPoints"`
	DrawPoints       int             `json:"drawPoints"`
	TimeLimitSeconds int             `json:"timeLimitSeconds"`
	Questions        []QuestionSpec  `json:"questions"`
}

// CreateMatch validates the authoring input, mints IDs, and persists the
// match together with its questions in one step. The match starts Active
// with the requested team on turn (TeamA when unspecified).
func (cm *CompetitionManager) CreateMatch(ctx context.Context, params MatchParams) (domain.MatchView, error) {
	if err := validateParams(params); err != nil {
		return domain.MatchView{}, err
	}

	turn := params.StartingTurn
	if turn == domain.TeamNone {
		turn = domain.TeamA
	}

	now := cm.now()
	match := domain.Match{
		ID:               uuid.NewString(),
		TeamA:            append([]string(nil), params.TeamA...),
		TeamB:            append([]string(nil), params.TeamB...),
		Turn:             turn,
		Status:           domain.MatchActive,
		Winner:           domain.WinnerNone,
		RewardPoints:     params.RewardPoints,
		DrawPoints:       params.DrawPoints,
		TimeLimitSeconds: params.TimeLimitSeconds,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	questions := make([]domain.Question, 0, len(params.Questions))
	order := map[domain.TeamSide]int{}
	for _, spec := range params.Questions {
		options := make([]domain.Option, len(spec.Options))
		for i, opt := range spec.Options {
			if opt.ID == "" {
				opt.ID = fmt.Sprintf("o%d", i+1)
			}
			options[i] = opt
		}
		correct := spec.CorrectOption
		if correct == "" {
			correct = options[0].ID
		}
		questions = append(questions, domain.Question{
			ID:            uuid.NewString(),
			MatchID:       match.ID,
			AssignedTeam:  spec.AssignedTeam,
			OrderIndex:    order[spec.AssignedTeam],
			Prompt:        spec.Prompt,
			Options:       options,
			CorrectOption: correct,
		})
		order[spec.AssignedTeam]++
	}

	if err := cm.repo.CreateMatch(ctx, match, questions); err != nil {
		return domain.MatchView{}, fmt.Errorf("create match: %w", err)
	}
	cm.log.Info().Str("matchID", match.ID).
		Int("questions", len(questions)).
		Str("turn", string(turn)).
		Msg("match created")
	return cm.view(ctx, match, NewQuestionPool(questions), nil), nil
}

func validateParams(params MatchParams) error {
	if len(params.TeamA) == 0 || len(params.TeamB) == 0 {
		return fmt.Errorf("%w: both teams need at least one member", domain.ErrInvalidMatch)
	}
	inA := make(map[string]struct{}, len(params.TeamA))
	for _, id := range params.TeamA {
		inA[id] = struct{}{}
	}
	for _, id := range params.TeamB {
		if _, clash := inA[id]; clash {
			return fmt.Errorf("%w: member %s is on both teams", domain.ErrInvalidMatch, id)
		}
	}
	if params.RewardPoints < 0 || params.DrawPoints < 0 {
		return fmt.Errorf("%w: reward points must be non-negative", domain.ErrInvalidMatch)
	}
	if params.StartingTurn != domain.TeamNone && !params.StartingTurn.Valid() {
		return fmt.Errorf("%w: unknown starting turn %q", domain.ErrInvalidMatch, params.StartingTurn)
	}
	perTeam := map[domain.TeamSide]int{}
	for i, q := range params.Questions {
		if !q.AssignedTeam.Valid() {
			return fmt.Errorf("%w: question %d has no assigned team", domain.ErrInvalidMatch, i)
		}
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return fmt.Errorf("%w: question %d needs 2-4 options", domain.ErrInvalidMatch, i)
		}
		if q.CorrectOption != "" {
			found := false
			for _, opt := range q.Options {
				if opt.ID == q.CorrectOption {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: question %d correct option not among options", domain.ErrInvalidMatch, i)
			}
		}
		perTeam[q.AssignedTeam]++
	}
	if perTeam[domain.TeamA] == 0 || perTeam[domain.TeamB] == 0 {
		return fmt.Errorf("%w: both teams need at least one question", domain.ErrInvalidMatch)
	}
	return nil
}

// GetMatch returns the current consistent view of a match.
func (cm *CompetitionManager) GetMatch(ctx context.Context, matchID string) (domain.MatchView, error) {
	lock := cm.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := cm.repo.LoadMatch(ctx, matchID)
	if err != nil {
		return domain.MatchView{}, err
	}
	questions, err := cm.repo.LoadQuestions(ctx, matchID)
	if err != nil {
		return domain.MatchView{}, err
	}
	return cm.view(ctx, match, NewQuestionPool(questions), nil), nil
}

// submission is one answer attempt flowing through the engine. Synthetic
// submissions come from the turn sweeper: they target whatever question
// is current for the team on turn and always score zero.
type submission struct {
	team       domain.TeamSide
	memberID   string
	questionID string
	optionID   string
	synthetic  bool
}

// SubmitAnswer validates and applies one answer as a single atomic unit
// per match: mark the question answered, apply the score, advance the
// turn, settle rewards on completion, bump the version, publish the new
// view. Concurrent teammates racing on the same question are resolved
// idempotently: the first one in scores, the rest get the current view
// back with Outcome.AlreadyResolved set.
func (cm *CompetitionManager) SubmitAnswer(ctx context.Context, matchID string, team domain.TeamSide, memberID, questionID, optionID string) (domain.MatchView, error) {
	if !team.Valid() {
		return domain.MatchView{}, domain.ErrNotTeamMember
	}
	lock := cm.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()
	return cm.resolveLocked(ctx, matchID, submission{
		team:       team,
		memberID:   memberID,
		questionID: questionID,
		optionID:   optionID,
	})
}

// ExpireTurn pushes a synthetic incorrect answer through the engine when
// the team on turn has been idle past the match's soft time limit. The
// second return reports whether a turn was actually consumed.
func (cm *CompetitionManager) ExpireTurn(ctx context.Context, matchID string) (domain.MatchView, bool, error) {
	lock := cm.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := cm.repo.LoadMatch(ctx, matchID)
	if err != nil {
		return domain.MatchView{}, false, err
	}
	if match.Status != domain.MatchActive || match.TimeLimitSeconds <= 0 {
		return domain.MatchView{}, false, nil
	}
	if cm.now().Sub(match.UpdatedAt) < time.Duration(match.TimeLimitSeconds)*time.Second {
		return domain.MatchView{}, false, nil
	}

	view, err := cm.resolveLocked(ctx, matchID, submission{synthetic: true})
	if err != nil {
		return domain.MatchView{}, false, err
	}
	cm.log.Info().Str("matchID", matchID).Msg("turn expired, synthetic answer applied")
	return view, true, nil
}

// pendingMark records a question this submission already persisted as
// answered before losing the match CAS. The retry must not mistake its
// own write for a teammate's: as long as the match version is still the
// one it lost against, the transition is re-applied instead of resolving
// as the benign already-answered case.
type pendingMark struct {
	questionID string
	version    int64
}

// resolveLocked runs the transition. The caller holds the match lock;
// the bounded retry loop covers cross-instance version conflicts by
// reloading fresh state. A conflict caused by a writer who advanced the
// same question resolves as the benign already-answered case; persistent
// conflicts surface the retryable ErrVersionConflict.
func (cm *CompetitionManager) resolveLocked(ctx context.Context, matchID string, sub submission) (domain.MatchView, error) {
	var pending *pendingMark
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		view, mark, err := cm.transition(ctx, matchID, sub, pending)
		if errors.Is(err, domain.ErrVersionConflict) {
			lastErr = err
			pending = mark
			continue
		}
		return view, err
	}
	return domain.MatchView{}, fmt.Errorf("submit answer: %w", lastErr)
}

func (cm *CompetitionManager) transition(ctx context.Context, matchID string, sub submission, pending *pendingMark) (domain.MatchView, *pendingMark, error) {
	match, err := cm.repo.LoadMatch(ctx, matchID)
	if err != nil {
		return domain.MatchView{}, nil, err
	}
	questions, err := cm.repo.LoadQuestions(ctx, matchID)
	if err != nil {
		return domain.MatchView{}, nil, err
	}
	pool := NewQuestionPool(questions)

	if sub.synthetic {
		sub.team = match.Turn
		if pending != nil && pending.version == match.Version {
			sub.questionID = pending.questionID
		} else {
			next, ok := pool.Next(sub.team)
			if !ok {
				return domain.MatchView{}, nil, domain.ErrMatchClosed
			}
			sub.questionID = next.ID
		}
	} else {
		roster := false
		for _, id := range match.Members(sub.team) {
			if id == sub.memberID {
				roster = true
				break
			}
		}
		if !roster {
			return domain.MatchView{}, nil, domain.ErrNotTeamMember
		}
	}

	question, ok := pool.Get(sub.questionID)
	if !ok || question.MatchID != matchID {
		return domain.MatchView{}, nil, domain.ErrQuestionNotFound
	}
	if question.AssignedTeam != sub.team {
		return domain.MatchView{}, nil, domain.ErrStaleQuestion
	}
	// The answered flag is this submission's own orphaned write when the
	// match version never moved past the one the CAS lost against.
	resuming := question.Answered && pending != nil &&
		pending.questionID == question.ID && pending.version == match.Version
	if question.Answered && !resuming {
		// Benign teammate race: someone else already resolved this
		// question. Return the current state unchanged.
		outcome := &domain.AnswerOutcome{QuestionID: question.ID, AlreadyResolved: true}
		return cm.view(ctx, match, pool, outcome), nil, nil
	}
	if match.Status != domain.MatchActive {
		return domain.MatchView{}, nil, domain.ErrMatchClosed
	}
	if match.Turn != sub.team {
		return domain.MatchView{}, nil, domain.ErrNotYourTurn
	}
	if !resuming {
		if current, _ := pool.Next(sub.team); current.ID != sub.questionID {
			return domain.MatchView{}, nil, domain.ErrStaleQuestion
		}
	}

	marked, fresh := pool.MarkAnswered(sub.questionID)
	if !fresh && !resuming {
		outcome := &domain.AnswerOutcome{QuestionID: marked.ID, AlreadyResolved: true}
		return cm.view(ctx, match, pool, outcome), nil, nil
	}

	correct := sub.optionID != "" && sub.optionID == marked.CorrectOption
	delta := 0
	if correct {
		delta = 1
	}
	cm.ledger.Apply(&match, sub.team, delta)

	next, err := NextState(match, sub.team, pool.Exhausted(sub.team), pool.Exhausted(sub.team.Opponent()))
	if err != nil {
		return domain.MatchView{}, nil, err
	}
	match.Turn = next.Turn
	match.Status = next.Status
	match.Winner = next.Winner
	match.UpdatedAt = cm.now()

	if !resuming {
		if err := cm.repo.SaveQuestion(ctx, marked); err != nil {
			return domain.MatchView{}, nil, fmt.Errorf("save question: %w", err)
		}
	}

	// The version CAS is the scoring guard across instances: losing the
	// race hands the already-marked question back to the retry, which
	// decides between resuming and the benign already-answered case.
	expected := match.Version
	match.Version = expected + 1
	if err := cm.repo.SaveMatch(ctx, match, expected); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return domain.MatchView{}, &pendingMark{questionID: marked.ID, version: expected}, err
		}
		return domain.MatchView{}, nil, err
	}

	if next.Completed {
		if err := cm.settle(ctx, &match); err != nil {
			return domain.MatchView{}, nil, err
		}
	}

	outcome := &domain.AnswerOutcome{QuestionID: marked.ID, Correct: correct}
	view := cm.view(ctx, match, pool, outcome)
	cm.notifier.MatchChanged(view)
	cm.log.Debug().Str("matchID", matchID).
		Str("team", string(sub.team)).
		Str("questionID", marked.ID).
		Bool("correct", correct).
		Str("status", string(match.Status)).
		Msg("answer applied")
	return view, nil, nil
}

// settle pays the winners and persists the rewardPaid flip as a second
// version bump under the same lock.
func (cm *CompetitionManager) settle(ctx context.Context, match *domain.Match) error {
	err := cm.rewards.Settle(ctx, match)
	if errors.Is(err, domain.ErrAlreadySettled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle rewards: %w", err)
	}
	expected := match.Version
	match.Version = expected + 1
	if err := cm.repo.SaveMatch(ctx, *match, expected); err != nil {
		return fmt.Errorf("persist settlement: %w", err)
	}
	cm.log.Info().Str("matchID", match.ID).
		Str("winner", string(match.Winner)).
		Msg("match settled")
	return nil
}

// view assembles the client snapshot. Directory failures degrade to raw
// member IDs; name resolution never blocks match logic.
func (cm *CompetitionManager) view(ctx context.Context, match domain.Match, pool *QuestionPool, outcome *domain.AnswerOutcome) domain.MatchView {
	names := map[string]string{}
	if cm.directory != nil {
		ids := append(append([]string(nil), match.TeamA...), match.TeamB...)
		resolved, err := cm.directory.Resolve(ctx, ids)
		if err != nil {
			cm.log.Debug().Err(err).Str("matchID", match.ID).Msg("member name resolution failed")
		} else {
			names = resolved
		}
	}

	view := domain.MatchView{
		MatchID:          match.ID,
		Status:           match.Status,
		Turn:             match.Turn,
		ScoreA:           match.ScoreA,
		ScoreB:           match.ScoreB,
		Winner:           match.Winner,
		TeamA:            memberViews(match.TeamA, names),
		TeamB:            memberViews(match.TeamB, names),
		RemainingA:       pool.Remaining(domain.TeamA),
		RemainingB:       pool.Remaining(domain.TeamB),
		TimeLimitSeconds: match.TimeLimitSeconds,
		Outcome:          outcome,
		Version:          match.Version,
		UpdatedAt:        match.UpdatedAt,
	}
	if match.Status == domain.MatchActive {
		if q, ok := pool.Next(match.Turn); ok {
			view.NextQuestion = &domain.QuestionView{
				QuestionID:   q.ID,
				Prompt:       q.Prompt,
				Options:      append([]domain.Option(nil), q.Options...),
				AssignedTeam: q.AssignedTeam,
				OrderIndex:   q.OrderIndex,
			}
		}
	}
	return view
}

func memberViews(ids []string, names map[string]string) []domain.MemberView {
	out := make([]domain.MemberView, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok || name == "" {
			name = id
		}
		out = append(out, domain.MemberView{MemberID: id, DisplayName: name})
	}
	return out
}
