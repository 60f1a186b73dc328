package http

import (
	"sync"

	"team-duel-service/internal/domain"
)

// Hub fans match views out to the websocket subscribers of each match.
// It implements app.Notifier; broadcasting never blocks the engine, slow
// clients just get the freshest view.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.MatchView]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.MatchView]struct{})}
}

// Subscribe registers for updates of one match. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(matchID string) (<-chan domain.MatchView, func()) {
	ch := make(chan domain.MatchView, 8)

	h.mu.Lock()
	if h.subs[matchID] == nil {
		h.subs[matchID] = make(map[chan domain.MatchView]struct{})
	}
	h.subs[matchID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[matchID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, matchID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// MatchChanged broadcasts the view to every subscriber of the match.
// Full buffers drop the stale update so a slow reader never blocks the
// transition that produced the event. Every send is non-blocking: if a
// concurrent broadcast refills the buffer between the drain and the
// retry, this view is dropped in favor of the newer one.
func (h *Hub) MatchChanged(view domain.MatchView) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[view.MatchID] {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}
