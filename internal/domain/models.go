package domain

import "time"

// TeamSide identifies one of the two rosters in a match.
type TeamSide string

const (
	TeamA TeamSide = "team_a"
	TeamB TeamSide = "team_b"
	// TeamNone is only valid as a turn value on a completed match.
	TeamNone TeamSide = ""
)

// Opponent returns the other side; TeamNone maps to itself.
func (t TeamSide) Opponent() TeamSide {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return TeamNone
	}
}

// Valid reports whether the side names an actual roster.
func (t TeamSide) Valid() bool {
	return t == TeamA || t == TeamB
}

// MatchStatus is the lifecycle state of a match. Completed is terminal.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
)

// Winner is the recorded outcome of a completed match.
type Winner string

const (
	WinnerTeamA Winner = "team_a"
	WinnerTeamB Winner = "team_b"
	WinnerDraw  Winner = "draw"
	WinnerNone  Winner = ""
)

// Match is the aggregate root for one team-vs-team duel. It is mutated
// only through the competition manager, one serialized transition at a
// time; Version is the optimistic-concurrency guard enforced by the
// persistence layer.
type Match struct {
	ID               string      `json:"id"`
	TeamA            []string    `json:"teamA"`
	TeamB            []string    `json:"teamB"`
	ScoreA           int         `json:"scoreA"`
	ScoreB           int         `json:"scoreB"`
	Turn             TeamSide    `json:"turn"`
	Status           MatchStatus `json:"status"`
	Winner           Winner      `json:"winner"`
	RewardPoints     int         `json:"rewardPoints"`
	DrawPoints       int         `json:"drawPoints"`
	TimeLimitSeconds int         `json:"timeLimitSeconds"`
	RewardPaid       bool        `json:"rewardPaid"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Members returns the roster for a side; the returned slice is shared.
func (m *Match) Members(side TeamSide) []string {
	switch side {
	case TeamA:
		return m.TeamA
	case TeamB:
		return m.TeamB
	default:
		return nil
	}
}

// SideOf resolves which roster a member belongs to, or TeamNone.
func (m *Match) SideOf(memberID string) TeamSide {
	for _, id := range m.TeamA {
		if id == memberID {
			return TeamA
		}
	}
	for _, id := range m.TeamB {
		if id == memberID {
			return TeamB
		}
	}
	return TeamNone
}

// Score returns the current score for a side.
func (m *Match) Score(side TeamSide) int {
	if side == TeamA {
		return m.ScoreA
	}
	return m.ScoreB
}

// Clone deep-copies the match so callers can mutate freely.
func (m Match) Clone() Match {
	out := m
	out.TeamA = append([]string(nil), m.TeamA...)
	out.TeamB = append([]string(nil), m.TeamB...)
	return out
}

// Option is one selectable choice on a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single pool entry assigned to one team. Answered flips
// false→true exactly once; option IDs never change after authoring.
type Question struct {
	ID            string   `json:"id"`
	MatchID       string   `json:"matchId"`
	AssignedTeam  TeamSide `json:"assignedTeam"`
	OrderIndex    int      `json:"orderIndex"`
	Prompt        string   `json:"prompt"`
	Options       []Option `json:"options"`
	CorrectOption string   `json:"correctOption"`
	Answered      bool     `json:"answered"`
}

// HasOption reports whether the question carries the given option ID.
func (q *Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// MemberView pairs a member ID with its resolved display name.
type MemberView struct {
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
}

// QuestionView is the client-safe projection of the question currently
// up for answering. The correct option is never included.
type QuestionView struct {
	QuestionID   string   `json:"questionId"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	AssignedTeam TeamSide `json:"assignedTeam"`
	OrderIndex   int      `json:"orderIndex"`
}

// AnswerOutcome describes what a submission did. AlreadyResolved marks
// the benign teammate race: someone else answered first and the view is
// returned unchanged.
type AnswerOutcome struct {
	QuestionID      string `json:"questionId"`
	Correct         bool   `json:"correct"`
	AlreadyResolved bool   `json:"alreadyResolved"`
}

// MatchView is the consistent snapshot returned to clients after every
// read or accepted transition.
type MatchView struct {
	MatchID          string         `json:"matchId"`
	Status           MatchStatus    `json:"status"`
	Turn             TeamSide       `json:"turn"`
	ScoreA           int            `json:"scoreA"`
	ScoreB           int            `json:"scoreB"`
	Winner           Winner         `json:"winner"`
	TeamA            []MemberView   `json:"teamA"`
	TeamB            []MemberView   `json:"teamB"`
	NextQuestion     *QuestionView  `json:"nextQuestion,omitempty"`
	RemainingA       int            `json:"remainingA"`
	RemainingB       int            `json:"remainingB"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	Outcome          *AnswerOutcome `json:"outcome,omitempty"`
	Version          int64          `json:"version"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
