package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flashmart/seckill/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOrderQueue implements OrderQueue on a Redis stream with a consumer
// group. Entries appended by the admission gate stay in the group's pending
// list from delivery until XACK, which is what makes crash replay possible.
type RedisOrderQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
}

// NewRedisOrderQueue creates a new Redis stream order queue
func NewRedisOrderQueue(client *redis.Client, stream, group, consumer string, logger *zap.Logger) *RedisOrderQueue {
	return &RedisOrderQueue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger,
	}
}

// EnsureGroup creates the consumer group and the stream if either is missing
func (q *RedisOrderQueue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Append adds an order to the tail of the stream
func (q *RedisOrderQueue) Append(ctx context.Context, order *model.VoucherOrder) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"order_id":   order.OrderID,
			"user_id":    order.UserID,
			"voucher_id": order.VoucherID,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append order: %w", err)
	}
	return id, nil
}

// ReadNext blocks up to block for one new entry
func (q *RedisOrderQueue) ReadNext(ctx context.Context, block time.Duration) (*QueueEntry, error) {
	return q.readOne(ctx, ">", block)
}

// ReadPending returns the oldest delivered-but-unacknowledged entry
func (q *RedisOrderQueue) ReadPending(ctx context.Context) (*QueueEntry, error) {
	return q.readOne(ctx, "0", 0)
}

func (q *RedisOrderQueue) readOne(ctx context.Context, offset string, block time.Duration) (*QueueEntry, error) {
	args := &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, offset},
		Count:    1,
	}
	if block > 0 {
		args.Block = block
	} else {
		// A zero Block would wait forever; -1 disables blocking.
		args.Block = -1
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	order, err := orderFromValues(msg.Values)
	if err != nil {
		return nil, fmt.Errorf("malformed queue entry %s: %w", msg.ID, err)
	}
	return &QueueEntry{ID: msg.ID, Order: *order}, nil
}

// Ack removes the entry from the pending list
func (q *RedisOrderQueue) Ack(ctx context.Context, entryID string) error {
	return q.client.XAck(ctx, q.stream, q.group, entryID).Err()
}

func orderFromValues(values map[string]interface{}) (*model.VoucherOrder, error) {
	orderID, err := int64Field(values, "order_id")
	if err != nil {
		return nil, err
	}
	userID, err := int64Field(values, "user_id")
	if err != nil {
		return nil, err
	}
	voucherID, err := int64Field(values, "voucher_id")
	if err != nil {
		return nil, err
	}
	return &model.VoucherOrder{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
	}, nil
}

func int64Field(values map[string]interface{}, field string) (int64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("field %q is not a string", field)
	}
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}
