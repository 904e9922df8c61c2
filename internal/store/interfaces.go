package store

import (
	"context"
	"errors"
	"time"

	"github.com/flashmart/seckill/internal/model"
)

// ErrNotFound is returned when a key or row is not found
var ErrNotFound = errors.New("not found")

// KeyValueStore is the slice of the KV substrate used by the cache guard,
// the distributed lock, and the ID generator. All operations are assumed
// linearizable at the single-key level.
type KeyValueStore interface {
	// Get returns the stored value or ErrNotFound. An empty string is a
	// legal value (the null sentinel used by the cache guard).
	Get(ctx context.Context, key string) (string, error)

	// Set stores value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if the key is absent. Returns true when the
	// key was created by this call.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// CompareAndDelete deletes the key only if its current value equals
	// expected, as a single atomic step. Returns true when the key was
	// deleted by this call.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// Increment atomically increments the counter stored at key and
	// returns the new value. A missing key counts from zero.
	Increment(ctx context.Context, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// AdmissionCode is the result of one admission attempt.
type AdmissionCode int

const (
	AdmissionOK        AdmissionCode = 0
	AdmissionSoldOut   AdmissionCode = 1
	AdmissionDuplicate AdmissionCode = 2
	AdmissionClosed    AdmissionCode = 3
)

// AdmissionStore executes the seckill admission check as one indivisible
// operation: window check, stock check, one-order-per-user check, stock
// decrement, purchaser marking, and order enqueue happen without
// interleaving from concurrent callers.
type AdmissionStore interface {
	// PrewarmVoucher publishes the voucher's stock counter and sale window
	// so admission attempts can be decided without touching the relational
	// store.
	PrewarmVoucher(ctx context.Context, voucher *model.SeckillVoucher) error

	// Reserve attempts to admit one order. On AdmissionOK the order has
	// been appended to the order queue as part of the same atomic step.
	Reserve(ctx context.Context, voucherID, userID, orderID int64) (AdmissionCode, error)
}

// QueueEntry is a delivered order plus its queue-assigned entry id, needed
// for acknowledgment.
type QueueEntry struct {
	ID    string
	Order model.VoucherOrder
}

// OrderQueue is a durable, ordered, replayable channel carrying
// admitted-but-not-yet-persisted orders. Delivery is at-least-once: an entry
// stays pending until explicitly acknowledged.
type OrderQueue interface {
	// EnsureGroup creates the consumer group if it does not exist yet.
	EnsureGroup(ctx context.Context) error

	// Append adds an order to the tail of the queue and returns its entry id.
	Append(ctx context.Context, order *model.VoucherOrder) (string, error)

	// ReadNext blocks up to block for one not-yet-delivered entry.
	// Returns (nil, nil) when the wait expires empty.
	ReadNext(ctx context.Context, block time.Duration) (*QueueEntry, error)

	// ReadPending returns the oldest entry that was delivered to this
	// consumer but never acknowledged, or (nil, nil) when none remain.
	ReadPending(ctx context.Context) (*QueueEntry, error)

	// Ack removes the entry from the pending set.
	Ack(ctx context.Context, entryID string) error
}

// ShopStore is the relational persistence layer for shops.
type ShopStore interface {
	GetShop(ctx context.Context, id int64) (*model.Shop, error)
	UpdateShop(ctx context.Context, shop *model.Shop) error
}

// VoucherStore is the relational persistence layer for seckill vouchers.
type VoucherStore interface {
	GetVoucher(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error)
	CreateVoucher(ctx context.Context, voucher *model.SeckillVoucher) error
}

// OrderStore persists admitted orders. CreateOrder is the transactional
// boundary of the write path.
type OrderStore interface {
	// CreateOrder re-checks (user, voucher) uniqueness, conditionally
	// decrements persisted stock, and inserts the order row, all in one
	// transaction. A lost stock race or an existing order makes the call a
	// no-op rather than an error.
	CreateOrder(ctx context.Context, order *model.VoucherOrder) error

	CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error)
}
