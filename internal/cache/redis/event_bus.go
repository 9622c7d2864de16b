package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// EventBus implements domain.EventBus: Pub/Sub for optimization events and
// Streams for the durable request queue.
type EventBus struct {
	rdb    *redis.Client
	maxLen int64
	groups sync.Map // "stream/group" already created
}

// NewEventBus creates an EventBus. Streams are trimmed to roughly maxLen
// entries on append.
func NewEventBus(c *Client, maxLen int64) *EventBus {
	return &EventBus{rdb: c.Underlying(), maxLen: maxLen}
}

// Publish sends payload to a Pub/Sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. Glob patterns
// use PSUBSCRIBE. The returned channel closes when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = b.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = b.rdb.Subscribe(ctx, channel)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
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
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend appends payload to stream with approximate MAXLEN trimming.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamGroupRead reads up to count entries for consumer in group, creating
// the group at the start of the stream on first use. With id ">" it blocks up
// to block for new entries; otherwise it returns the consumer's pending
// entries after id. Entries whose payload was trimmed are acknowledged and
// skipped. An empty result is not an error.
func (b *EventBus) StreamGroupRead(ctx context.Context, stream, group, consumer, id string, count int, block time.Duration) ([]domain.StreamMessage, error) {
	if err := b.ensureGroup(ctx, stream, group); err != nil {
		return nil, err
	}
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    int64(count),
		Block:    block,
	}
	if block <= 0 || id != ">" {
		args.Block = -1
	}

	results, err := b.rdb.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if strings.HasPrefix(err.Error(), "NOGROUP") {
			b.groups.Delete(stream + "/" + group)
		}
		return nil, fmt.Errorf("redis: stream read %s/%s: %w", stream, group, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		messages = append(messages, toStreamMessages(s.Messages)...)
		if stale := withoutPayload(s.Messages); len(stale) > 0 {
			if err := b.StreamAck(ctx, stream, group, stale...); err != nil {
				return nil, err
			}
		}
	}
	return messages, nil
}

// StreamAck acknowledges ids so they leave the group's pending list.
func (b *EventBus) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("redis: stream ack %s/%s: %w", stream, group, err)
	}
	return nil
}

func (b *EventBus) ensureGroup(ctx context.Context, stream, group string) error {
	key := stream + "/" + group
	if _, ok := b.groups.Load(key); ok {
		return nil
	}
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("redis: create group %s/%s: %w", stream, group, err)
	}
	b.groups.Store(key, struct{}{})
	return nil
}

// isBusyGroup reports the error XGROUP CREATE returns for an existing group.
func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// withoutPayload returns the ids of entries toStreamMessages drops.
func withoutPayload(msgs []redis.XMessage) []string {
	var ids []string
	for _, msg := range msgs {
		switch msg.Values["payload"].(type) {
		case string, []byte:
		default:
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

// toStreamMessages keeps entries that carry a "payload" field.
func toStreamMessages(msgs []redis.XMessage) []domain.StreamMessage {
	out := make([]domain.StreamMessage, 0, len(msgs))
	for _, msg := range msgs {
		var data []byte
		switch v := msg.Values["payload"].(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}
		out = append(out, domain.StreamMessage{ID: msg.ID, Payload: data})
	}
	return out
}

var _ domain.EventBus = (*EventBus)(nil)
