package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"team-duel-service/internal/domain"
)

type captureSink struct {
	views chan domain.MatchView
}

func (s *captureSink) MatchChanged(view domain.MatchView) {
	s.views <- view
}

func TestBridgeForwardsPublishedViews(t *testing.T) {
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink := &captureSink{views: make(chan domain.MatchView, 4)}
	bridge := NewEventBridge(client, sink, zerolog.Nop())
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	defer bridge.Stop()

	publisher := NewEventPublisher(client, zerolog.Nop())
	publisher.MatchChanged(domain.MatchView{
		MatchID: "m1",
		Status:  domain.MatchActive,
		Turn:    domain.TeamB,
		ScoreA:  1,
		Version: 2,
	})

	select {
	case view := <-sink.views:
		if view.MatchID != "m1" || view.ScoreA != 1 || view.Turn != domain.TeamB {
			t.Fatalf("unexpected forwarded view %+v", view)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("published view never reached the sink")
	}
}
