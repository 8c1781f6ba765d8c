package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"climate-repair-server/config"
	"climate-repair-server/models"
	"climate-repair-server/services"
)

// EventChannel is the Redis pub/sub channel shared by all server instances.
const EventChannel = "repair-requests:events"

// NewRedis creates a Redis client from the configuration.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	log.Printf("redis: client created (addr: %s)", cfg.Addr)
	return rdb
}

type envelope struct {
	Origin string              `json:"origin"`
	Event  models.RequestEvent `json:"event"`
}

// RedisBridge relays request events between server instances. Events raised
// here go to local clients immediately and to Redis for everyone else; events
// from other instances arrive through Run.
type RedisBridge struct {
	rdb    *redis.Client
	local  services.EventPublisher
	origin string
}

func NewRedisBridge(rdb *redis.Client, local services.EventPublisher) *RedisBridge {
	return &RedisBridge{rdb: rdb, local: local, origin: uuid.NewString()}
}

// Publish implements services.EventPublisher.
func (b *RedisBridge) Publish(event models.RequestEvent) {
	b.local.Publish(event)

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		log.Printf("redis: marshal event: %v", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), EventChannel, payload).Err(); err != nil {
		log.Printf("redis: publish event for request %d: %v", event.RequestID, err)
	}
}

// Run forwards events published by other instances until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, EventChannel)
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
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBridge) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("redis: bad event payload: %v", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.local.Publish(env.Event)
}
