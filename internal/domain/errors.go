package domain

import "errors"

var (
	// ErrMatchNotFound is returned when the match ID is unknown.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchClosed rejects transitions against a completed match.
	ErrMatchClosed = errors.New("match already completed")
	// ErrNotYourTurn rejects submissions from the team not on turn.
	ErrNotYourTurn = errors.New("not your team's turn")
	// ErrNotTeamMember rejects submissions from users on neither roster.
	ErrNotTeamMember = errors.New("member is not on the submitting team")
	// ErrStaleQuestion rejects submissions for a question that is not the
	// team's current one (distinct from the benign teammate race).
	ErrStaleQuestion = errors.New("question is not the current one for this team")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrVersionConflict is returned by persistence when a save races a
	// concurrent writer; the caller reloads and retries.
	ErrVersionConflict = errors.New("match version conflict")
	// ErrAlreadySettled marks a repeated reward settlement as a no-op.
	ErrAlreadySettled = errors.New("match rewards already settled")
	// ErrInvalidMatch is returned when match creation input is malformed.
	ErrInvalidMatch = errors.New("invalid match definition")
)
