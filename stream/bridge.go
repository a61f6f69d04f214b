package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"slateboard/domain"
	"slateboard/internal/consts"
)

const (
	scopeBoard = "board"
	scopeUser  = "user"
)

type envelope struct {
	Scope string       `json:"scope"`
	ID    string       `json:"id"`
	Event domain.Event `json:"event"`
}

// Bridge fans events out across instances through a Redis pub/sub channel.
// Every instance publishes to the channel and every instance's Run loop
// delivers received events to its local hub, so a client is reached no
// matter which instance handled the mutation. With a nil Redis client the
// bridge degrades to direct local delivery.
type Bridge struct {
	logger *log.Logger
	rc     *redis.Client
	hub    *Hub
}

func NewBridge(logger *log.Logger, rc *redis.Client, hub *Hub) *Bridge {
	return &Bridge{logger: logger, rc: rc, hub: hub}
}

// PublishBoard sends an event to every subscriber of the board, across all
// instances.
func (b *Bridge) PublishBoard(ctx context.Context, boardID string, ev domain.Event) {
	b.publish(ctx, envelope{Scope: scopeBoard, ID: boardID, Event: ev})
}

// PublishUser sends an event to every connection of the user, across all
// instances.
func (b *Bridge) PublishUser(ctx context.Context, userID string, ev domain.Event) {
	b.publish(ctx, envelope{Scope: scopeUser, ID: userID, Event: ev})
}

func (b *Bridge) publish(ctx context.Context, env envelope) {
	if b.rc == nil {
		b.deliver(env)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Errorf("marshal event: %v", err)
		return
	}
	if err := b.rc.Publish(ctx, consts.BoardEventsChannel, data).Err(); err != nil {
		b.logger.Errorf("publish event: %v", err)
		// Local clients still get the update even if the fan-out failed.
		b.deliver(env)
	}
}

func (b *Bridge) deliver(env envelope) {
	switch env.Scope {
	case scopeBoard:
		b.hub.PublishBoard(env.ID, env.Event)
	case scopeUser:
		b.hub.PublishUser(env.ID, env.Event)
	default:
		b.logger.Errorf("unknown event scope %q", env.Scope)
	}
}

// Run listens for events published by any instance and delivers them to the
// local hub. It blocks until ctx is canceled and reconnects if the pub/sub
// channel closes.
func (b *Bridge) Run(ctx context.Context) {
	if b.rc == nil {
		<-ctx.Done()
		return
	}
	for {
		sub := b.rc.Subscribe(ctx, consts.BoardEventsChannel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Errorf("unable to parse event: %v", err)
					continue
				}
				b.deliver(env)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
