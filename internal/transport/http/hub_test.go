package http

import (
	"sync"
	"testing"
	"time"

	"team-duel-service/internal/domain"
)

func TestBroadcastDropsStaleViews(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("m1")
	defer cancel()

	for v := 1; v <= 20; v++ {
		hub.MatchChanged(domain.MatchView{MatchID: "m1", Version: int64(v)})
	}

	var last int64
	drained := false
	for !drained {
		select {
		case view := <-ch:
			last = view.Version
		default:
			drained = true
		}
	}
	if last != 20 {
		t.Fatalf("expected the freshest view to survive, got version %d", last)
	}
}

func TestConcurrentBroadcastsNeverBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("m1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for v := 0; v < 50; v++ {
					hub.MatchChanged(domain.MatchView{MatchID: "m1", Version: int64(v)})
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("broadcast blocked on a subscriber that never reads")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("m1")
	cancel()

	if _, open := <-ch; open {
		t.Fatalf("canceled subscription channel must be closed")
	}
	// Broadcasting after cancel must not panic or deliver.
	hub.MatchChanged(domain.MatchView{MatchID: "m1", Version: 1})
}
