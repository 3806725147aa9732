package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
)

const (
	publishTimeout = 250 * time.Millisecond
	outboxSize     = 1024
)

// Deliverer receives frames published by other gateway instances.
type Deliverer interface {
	DeliverRemote(teamID string, frame []byte, excludeID string)
}

// envelope is what travels over the pub/sub channel
type envelope struct {
	Origin    string          `json:"origin"`
	TeamID    string          `json:"teamId"`
	ExcludeID string          `json:"excludeId,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// Relay fans room broadcasts out across gateway instances through redis pub/sub.
type Relay struct {
	client     *goredis.Client
	prefix     string
	instanceID string

	outbox chan envelope
}

func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("connected to redis")

	return client, nil
}

func NewRelay(client *goredis.Client, prefix string) *Relay {
	return &Relay{
		client:     client,
		prefix:     prefix,
		instanceID: uuid.NewString(),
		outbox:     make(chan envelope, outboxSize),
	}
}

// Publish queues a frame for other instances. It never blocks the caller.
func (r *Relay) Publish(teamID string, frame []byte, excludeID string) {
	select {
	case r.outbox <- envelope{Origin: r.instanceID, TeamID: teamID, ExcludeID: excludeID, Frame: frame}:
	default:
		metric.RecordDroppedFrame("relay_backlog")
	}
}

// Run publishes queued frames and delivers remote ones until ctx is done.
func (r *Relay) Run(ctx context.Context, deliverer Deliverer) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", r.prefix, err)
	}

	go r.publishLoop(ctx)

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			r.deliver(deliverer, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.outbox:
			payload, err := json.Marshal(env)
			if err != nil {
				slog.Error("marshal relay envelope", slog.Any(constant.Error, err))
				continue
			}

			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err = r.client.Publish(pubCtx, r.prefix+env.TeamID, payload).Err()
			cancel()

			if err != nil {
				slog.Warn("publish to redis", slog.String(constant.TeamID, env.TeamID), slog.Any(constant.Error, err))
			}
		}
	}
}

func (r *Relay) deliver(deliverer Deliverer, channel string, payload []byte) {
	env, ok := r.decode(channel, payload)
	if !ok {
		return
	}

	deliverer.DeliverRemote(env.TeamID, env.Frame, env.ExcludeID)
}

// decode drops our own echoes and anything that does not match its channel.
func (r *Relay) decode(channel string, payload []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("unmarshal relay envelope", slog.Any(constant.Error, err))
		return envelope{}, false
	}

	if env.Origin == r.instanceID {
		return envelope{}, false
	}

	if strings.TrimPrefix(channel, r.prefix) != env.TeamID || len(env.Frame) == 0 || string(env.Frame) == "null" {
		return envelope{}, false
	}

	return env, true
}
