package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis publishes changes on a pub/sub topic so that every server instance
// streams every change.
type Redis struct {
	client *redis.Client
	topic  string
}

var _ Broker = (*Redis)(nil)

func NewRedis(client *redis.Client, topic string) *Redis {
	return &Redis{client: client, topic: topic}
}

func (r *Redis) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return r.client.Publish(ctx, r.topic, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.topic)
	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.topic, err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					log.Warn().Err(err).Str("module", "notify").Msg("bad change payload")
					continue
				}
				select {
				case out <- c:
				default:
					log.Warn().Str("module", "notify").Str("kind", string(c.Kind)).Msg("slow subscriber, change dropped")
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
