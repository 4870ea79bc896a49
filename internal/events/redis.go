package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const publishTimeout = 2 * time.Second

type wireEvent struct {
	Origin   string `json:"origin"`
	ClinicID string `json:"clinicId"`
	Kind     Kind   `json:"kind"`
}

// RedisBridge relays events between processes sharing one Redis. Local
// publishes reach the local hub directly and are mirrored to the clinic's
// channel; messages from other processes are republished into the hub.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
	prefix string
	origin string
	logger zerolog.Logger
}

func NewRedisBridge(hub *Hub, client *redis.Client, channelPrefix string, logger zerolog.Logger) *RedisBridge {
	if channelPrefix == "" {
		channelPrefix = "frontdesk:events"
	}
	return &RedisBridge{
		hub:    hub,
		client: client,
		prefix: channelPrefix,
		origin: uuid.NewString(),
		logger: logger.With().Str("component", "redis_bridge").Logger(),
	}
}

func (b *RedisBridge) channel(clinicID string) string {
	return b.prefix + ":" + clinicID
}

// Publish delivers locally and mirrors to Redis. A Redis failure is logged;
// local subscribers are notified regardless.
func (b *RedisBridge) Publish(clinicID string, kind Kind) {
	b.hub.Publish(clinicID, kind)

	payload, err := json.Marshal(wireEvent{Origin: b.origin, ClinicID: clinicID, Kind: kind})
	if err != nil {
		b.logger.Error().Err(err).Msg("encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel(clinicID), payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("clinic_id", clinicID).Str("kind", string(kind)).Msg("mirror event to redis failed")
	}
}

// Start subscribes to every clinic channel and relays remote events into the
// hub until ctx is done. It returns once the subscription is confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+":*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s:*: %w", b.prefix, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.relay(msg)
			}
		}
	}()

	b.logger.Info().Str("pattern", b.prefix+":*").Msg("redis bridge started")
	return nil
}

func (b *RedisBridge) relay(msg *redis.Message) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed event")
		return
	}
	if ev.Origin == b.origin {
		return
	}
	if ev.ClinicID == "" {
		ev.ClinicID = strings.TrimPrefix(msg.Channel, b.prefix+":")
	}
	b.hub.Publish(ev.ClinicID, ev.Kind)
}
