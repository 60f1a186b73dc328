package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"team-duel-service/internal/domain"
)

// EventPublisher pushes match views onto a per-match pub/sub channel so
// other service instances can fan them out to their own websocket
// subscribers. Publishing is informed-not-awaited: failures are logged
// and never roll back the transition.
type EventPublisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewEventPublisher(client *redis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{client: client, log: log}
}

func (p *EventPublisher) MatchChanged(view domain.MatchView) {
	data, err := json.Marshal(view)
	if err != nil {
		p.log.Error().Err(err).Str("matchID", view.MatchID).Msg("marshal match event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, eventChannel(view.MatchID), data).Err(); err != nil {
		p.log.Error().Err(err).Str("matchID", view.MatchID).Msg("publish match event")
	}
}

func eventChannel(matchID string) string {
	return "duel:events:" + matchID
}
