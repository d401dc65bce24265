package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
	"github.com/redis/go-redis/v9"
)

const relayChannel = "circlesync:events"

// relayEnvelope is the wire form of a frame crossing the relay: the circle it
// targets plus the frame itself.
type relayEnvelope struct {
	CircleID string               `json:"circle_id"`
	Frame    models.RealtimeFrame `json:"frame"`
}

// RedisRelay extends a local [Hub] across server instances. Broadcasts are
// published to a shared redis channel; a subscriber goroutine folds every
// published frame back into the local hub, so subscribers connected to any
// instance see events originating on any other.
type RedisRelay struct {
	hub    *Hub
	client *redis.Client
	logger *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisRelay connects to redis, verifies the connection and starts the
// subscriber loop.
func NewRedisRelay(ctx context.Context, redisURL string, hub *Hub, log *logger.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	log.Info().Msg("connected to redis relay")

	loopCtx, cancel := context.WithCancel(context.Background())
	relay := &RedisRelay{
		hub:    hub,
		client: client,
		logger: log,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go relay.subscribeLoop(loopCtx)

	return relay, nil
}

// Broadcast implements [Broadcaster]. The frame goes through redis rather
// than straight to the local hub; the subscriber loop delivers it locally
// along with every other instance.
func (r *RedisRelay) Broadcast(ctx context.Context, circleID string, frame models.RealtimeFrame) {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(relayEnvelope{CircleID: circleID, Frame: frame})
	if err != nil {
		log.Err(err).Str("circle_id", circleID).Msg("error serializing relay envelope")
		return
	}

	if err = r.client.Publish(ctx, relayChannel, payload).Err(); err != nil {
		log.Err(err).Str("circle_id", circleID).Msg("relay publish failed, delivering locally only")
		r.hub.Broadcast(ctx, circleID, frame)
	}
}

func (r *RedisRelay) subscribeLoop(ctx context.Context) {
	defer close(r.done)

	sub := r.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				r.logger.Err(err).Msg("error decoding relay envelope")
				continue
			}
			r.hub.Broadcast(ctx, envelope.CircleID, envelope.Frame)
		}
	}
}

// Close stops the subscriber loop and releases the redis connection.
func (r *RedisRelay) Close() error {
	r.cancel()
	<-r.done
	return r.client.Close()
}
