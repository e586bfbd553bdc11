// Package queue hands generation tasks from the API process to the
// worker pool over a Redis Stream. Delivery is at-least-once: a message
// is acknowledged only after the task reached a terminal state, and
// messages pending longer than a staleness threshold can be reclaimed
// by any consumer in the group.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pickitchen/pickitchen-backend/internal/provider"
)

// TaskMessage carries everything a worker needs to process one task.
type TaskMessage struct {
	TaskID   int64
	UserID   int64
	ImageURL string
	DrivenID string
	Detect   provider.DetectResult
}

func (m *TaskMessage) fields() (map[string]interface{}, error) {
	detect, err := json.Marshal(m.Detect)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detect result: %w", err)
	}
	return map[string]interface{}{
		"task_id":   strconv.FormatInt(m.TaskID, 10),
		"user_id":   strconv.FormatInt(m.UserID, 10),
		"image_url": m.ImageURL,
		"driven_id": m.DrivenID,
		"detect":    string(detect),
	}, nil
}

func parseMessage(values map[string]interface{}) (*TaskMessage, error) {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}

	taskID, err := strconv.ParseInt(str("task_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid task_id in message: %w", err)
	}
	userID, err := strconv.ParseInt(str("user_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id in message: %w", err)
	}

	msg := &TaskMessage{
		TaskID:   taskID,
		UserID:   userID,
		ImageURL: str("image_url"),
		DrivenID: str("driven_id"),
	}
	if raw := str("detect"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Detect); err != nil {
			return nil, fmt.Errorf("invalid detect result in message: %w", err)
		}
	}
	return msg, nil
}

// Message is a delivered task plus the stream entry ID to acknowledge.
type Message struct {
	ID   string
	Task TaskMessage
}

// Producer appends task messages to the stream.
type Producer struct {
	rdb    *redis.Client
	stream string
}

func NewProducer(rdb *redis.Client, stream string) *Producer {
	return &Producer{rdb: rdb, stream: stream}
}

// Enqueue appends the message and returns its stream entry ID. An error
// means the message was never durably enqueued; the caller decides what
// that does to the task.
func (p *Producer) Enqueue(ctx context.Context, msg *TaskMessage) (string, error) {
	fields, err := msg.fields()
	if err != nil {
		return "", err
	}
	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task %d: %w", msg.TaskID, err)
	}
	return id, nil
}

// ConsumerOptions configure one group member.
type ConsumerOptions struct {
	Stream   string
	Group    string
	Consumer string
	// Block bounds how long a fetch waits for new messages.
	Block time.Duration
	// ClaimMinIdle is how long a message may sit unacknowledged before
	// any group member may reclaim it from a crashed consumer.
	ClaimMinIdle time.Duration
	// Count caps messages per fetch.
	Count int64
}

// Consumer reads task messages as a member of a consumer group.
type Consumer struct {
	rdb  *redis.Client
	opts ConsumerOptions
}

func NewConsumer(rdb *redis.Client, opts ConsumerOptions) *Consumer {
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.ClaimMinIdle <= 0 {
		opts.ClaimMinIdle = time.Minute
	}
	if opts.Count <= 0 {
		opts.Count = 10
	}
	return &Consumer{rdb: rdb, opts: opts}
}

// EnsureGroup creates the consumer group, tolerating a group that
// already exists.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0-0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Fetch returns the next batch of messages for this consumer. When no
// new messages arrive within the block window it attempts to reclaim
// stale pending messages from other consumers, so work abandoned by a
// crashed worker is eventually picked up.
func (c *Consumer) Fetch(ctx context.Context) ([]Message, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  []string{c.opts.Stream, ">"},
		Count:    c.opts.Count,
		Block:    c.opts.Block,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var raw []redis.XMessage
	for _, s := range streams {
		raw = append(raw, s.Messages...)
	}

	if len(raw) == 0 {
		claimed, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.opts.Stream,
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			MinIdle:  c.opts.ClaimMinIdle,
			Start:    "0-0",
			Count:    c.opts.Count,
		}).Result()
		if err != nil && err != redis.Nil {
			// Reclaim is best effort; new deliveries still flow.
			return nil, nil
		}
		raw = claimed
	}

	msgs := make([]Message, 0, len(raw))
	for _, m := range raw {
		task, err := parseMessage(m.Values)
		if err != nil {
			// Poison message: acknowledge so it stops recycling.
			_ = c.Ack(ctx, m.ID)
			continue
		}
		msgs = append(msgs, Message{ID: m.ID, Task: *task})
	}
	return msgs, nil
}

// Ack marks a message as processed. Call only after the task's terminal
// state has been durably committed.
func (c *Consumer) Ack(ctx context.Context, id string) error {
	return c.rdb.XAck(ctx, c.opts.Stream, c.opts.Group, id).Err()
}
