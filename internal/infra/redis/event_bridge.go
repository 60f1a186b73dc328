package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"team-duel-service/internal/domain"
)

// ViewSink receives match views decoded off the event channels; the
// websocket hub satisfies it.
type ViewSink interface {
	MatchChanged(view domain.MatchView)
}

// EventBridge subscribes to the match event channels and forwards every
// published view into the local sink, so websocket subscribers on this
// instance see transitions regardless of which instance applied them.
type EventBridge struct {
	client *redis.Client
	sink   ViewSink
	log    zerolog.Logger

	pubsub *redis.PubSub
	done   chan struct{}
}

func NewEventBridge(client *redis.Client, sink ViewSink, log zerolog.Logger) *EventBridge {
	return &EventBridge{client: client, sink: sink, log: log}
}

// Start opens the pattern subscription and runs the forwarding loop
// until Stop. It returns once the subscription is confirmed.
func (b *EventBridge) Start(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, eventChannelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.run()
	b.log.Info().Str("pattern", eventChannelPattern).Msg("event bridge started")
	return nil
}

func (b *EventBridge) run() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		var view domain.MatchView
		if err := json.Unmarshal([]byte(msg.Payload), &view); err != nil {
			b.log.Error().Err(err).Str("channel", msg.Channel).Msg("decode match event")
			continue
		}
		b.sink.MatchChanged(view)
	}
}

// Stop closes the subscription and waits for the loop to drain.
func (b *EventBridge) Stop() {
	if b.pubsub == nil {
		return
	}
	_ = b.pubsub.Close()
	<-b.done
}

const eventChannelPattern = "duel:events:*"
