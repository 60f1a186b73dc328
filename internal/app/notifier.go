package app

import "team-duel-service/internal/domain"

// Notifier is informed, never awaited, after each accepted transition.
// Implementations must not block and their failures never roll back a
// saved match state.
type Notifier interface {
	MatchChanged(view domain.MatchView)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) MatchChanged(domain.MatchView) {}

// FanoutNotifier forwards each event to every wrapped notifier, e.g.
// the in-process websocket hub plus a redis publisher.
type FanoutNotifier []Notifier

func (f FanoutNotifier) MatchChanged(view domain.MatchView) {
	for _, n := range f {
		n.MatchChanged(view)
	}
}
