package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/walla-walla-travel/tourops/internal/app/system"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

var _ system.Service = (*Bridge)(nil)

// envelope is the wire format on the Redis channel. Origin lets an
// instance skip its own messages when they come back around.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bridge mirrors the hub onto a Redis channel so several instances share
// one operational stream. Locally published events go out on the
// channel; events from other instances are delivered to local
// subscribers only.
type Bridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewBridge creates a Redis bridge for the hub. The connection is not
// opened until Start.
func NewBridge(hub *Hub, addr, channel string, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.NewDefault("events-bridge")
	}
	return &Bridge{
		hub:     hub,
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

func (b *Bridge) Name() string { return "events-bridge" }

func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err := b.client.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		b.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.running = true
	b.mu.Unlock()

	pubsub := b.client.Subscribe(runCtx, b.channel)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.WithError(err).Warn("malformed event on redis channel")
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				b.hub.deliver(env.Event)
			}
		}
	}()

	b.hub.setForward(func(evt Event) {
		payload, err := json.Marshal(envelope{Origin: b.origin, Event: evt})
		if err != nil {
			return
		}
		pubCtx, cancelPub := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelPub()
		if err := b.client.Publish(pubCtx, b.channel, payload).Err(); err != nil {
			b.log.WithError(err).WithField("type", evt.Type).Warn("publish event to redis failed")
		}
	})

	b.log.WithField("channel", b.channel).Info("event bridge started")
	return nil
}

func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	b.hub.setForward(nil)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := b.client.Close(); err != nil {
		return err
	}
	b.log.Info("event bridge stopped")
	return nil
}
