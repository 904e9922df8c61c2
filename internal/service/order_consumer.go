package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flashmart/seckill/internal/lock"
	"github.com/flashmart/seckill/internal/metrics"
	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

// errOrderLocked means another worker holds this user's order lock. The
// delivery is dropped without acknowledgment; the entry stays pending and
// the recovery sweep retries it later.
var errOrderLocked = errors.New("order lock held elsewhere")

// OrderConsumer is the single logical worker draining the order queue:
// blocking read, per-user lock, transactional persist, acknowledge. A single
// consumer keeps persistence in dequeue order without cross-consumer
// coordination; per-user locks still allow the recovery sweep to run safely
// in parallel.
type OrderConsumer struct {
	queue   store.OrderQueue
	orders  store.OrderStore
	kv      store.KeyValueStore
	metrics *metrics.Metrics
	logger  *zap.Logger

	lockLease       time.Duration
	pollBlock       time.Duration
	recoveryBackoff time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// OrderConsumerConfig holds consumer tuning
type OrderConsumerConfig struct {
	LockLease       time.Duration
	PollBlock       time.Duration
	RecoveryBackoff time.Duration
}

// NewOrderConsumer creates a new order consumer
func NewOrderConsumer(
	queue store.OrderQueue,
	orders store.OrderStore,
	kv store.KeyValueStore,
	m *metrics.Metrics,
	cfg OrderConsumerConfig,
	logger *zap.Logger,
) *OrderConsumer {
	return &OrderConsumer{
		queue:           queue,
		orders:          orders,
		kv:              kv,
		metrics:         m,
		logger:          logger,
		lockLease:       cfg.LockLease,
		pollBlock:       cfg.PollBlock,
		recoveryBackoff: cfg.RecoveryBackoff,
	}
}

// Start launches the consumer loop in the background
func (c *OrderConsumer) Start(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to prepare order queue: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)

	c.logger.Info("Order consumer started")
	return nil
}

// Stop shuts the consumer down and waits for the current entry to finish
func (c *OrderConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("Order consumer stopped")
}

func (c *OrderConsumer) run(ctx context.Context) {
	defer c.wg.Done()

	// Entries left pending by a previous crash are drained before any new
	// work is read.
	c.recoverPending(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := c.queue.ReadNext(ctx, c.pollBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordConsumerError()
			c.logger.Error("Failed to read order queue", zap.Error(err))
			c.recoverPending(ctx)
			continue
		}
		if entry == nil {
			continue
		}

		if err := c.process(ctx, &entry.Order); err != nil {
			if errors.Is(err, errOrderLocked) {
				// Not acknowledged: the recovery sweep retries it.
				c.logger.Warn("Order lock busy, leaving entry pending",
					zap.String("entry_id", entry.ID),
					zap.Int64("user_id", entry.Order.UserID))
				continue
			}
			c.metrics.RecordConsumerError()
			c.logger.Error("Order processing failed",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
			c.recoverPending(ctx)
			continue
		}

		if err := c.queue.Ack(ctx, entry.ID); err != nil {
			// Non-fatal: the persist step is idempotent, so a replay of
			// this entry by the recovery sweep is harmless.
			c.logger.Warn("Failed to acknowledge order entry",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
		}
	}
}

// process persists one order under the per-user lock. The lock serializes
// "one order per user" across the consumer and the recovery sweep; the
// persist step itself suppresses duplicates on (user, voucher).
func (c *OrderConsumer) process(ctx context.Context, order *model.VoucherOrder) error {
	lk := lock.New(c.kv, fmt.Sprintf("order:%d", order.UserID), c.logger)
	acquired, err := lk.TryLock(ctx, c.lockLease)
	if err != nil {
		return fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !acquired {
		return errOrderLocked
	}
	defer func() {
		if err := lk.Unlock(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to release order lock",
				zap.Int64("user_id", order.UserID),
				zap.Error(err))
		}
	}()

	start := time.Now()
	if err := c.orders.CreateOrder(ctx, order); err != nil {
		c.metrics.RecordOrderPersisted("error", time.Since(start).Seconds())
		return err
	}
	c.metrics.RecordOrderPersisted("ok", time.Since(start).Seconds())
	return nil
}

// recoverPending replays entries that were delivered but never acknowledged,
// oldest first. Repeated failures back off and retry indefinitely: a crashed
// consumer must not lose admitted orders.
func (c *OrderConsumer) recoverPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		entry, err := c.queue.ReadPending(ctx)
		if err != nil {
			c.logger.Error("Failed to read pending entries", zap.Error(err))
			if !c.sleep(ctx, c.recoveryBackoff) {
				return
			}
			continue
		}
		if entry == nil {
			return
		}

		if err := c.process(ctx, &entry.Order); err != nil {
			c.logger.Error("Pending entry replay failed",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
			if !c.sleep(ctx, c.recoveryBackoff) {
				return
			}
			continue
		}

		c.metrics.RecordPendingReplay()
		if err := c.queue.Ack(ctx, entry.ID); err != nil {
			c.logger.Warn("Failed to acknowledge replayed entry",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
		}
	}
}

func (c *OrderConsumer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
