package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flashmart/seckill/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// admissionScript is the whole admission gate in one script: window check,
// stock check, one-order-per-user check, stock decrement, purchaser marking,
// and stream append run without interleaving from concurrent callers.
//
// KEYS[1] stock counter, KEYS[2] purchaser set, KEYS[3] window hash,
// KEYS[4] order stream. ARGV[1] voucher id, ARGV[2] user id, ARGV[3] order id.
var admissionScript = redis.NewScript(`
local now = tonumber(redis.call("time")[1])
local begin_at = redis.call("hget", KEYS[3], "begin")
local end_at = redis.call("hget", KEYS[3], "end")
if not begin_at or not end_at then
    return 3
end
if now < tonumber(begin_at) or now > tonumber(end_at) then
    return 3
end
if tonumber(redis.call("get", KEYS[1]) or "0") <= 0 then
    return 1
end
if redis.call("sismember", KEYS[2], ARGV[2]) == 1 then
    return 2
end
redis.call("incrby", KEYS[1], -1)
redis.call("sadd", KEYS[2], ARGV[2])
redis.call("xadd", KEYS[4], "*", "order_id", ARGV[3], "user_id", ARGV[2], "voucher_id", ARGV[1])
return 0
`)

// RedisAdmissionStore implements AdmissionStore for Redis
type RedisAdmissionStore struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisAdmissionStore creates a Redis-backed admission gate appending
// admitted orders to the given stream.
func NewRedisAdmissionStore(client *redis.Client, stream string, logger *zap.Logger) *RedisAdmissionStore {
	return &RedisAdmissionStore{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func stockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:%d", voucherID)
}

func purchaserKey(voucherID int64) string {
	return fmt.Sprintf("seckill:order:%d", voucherID)
}

func windowKey(voucherID int64) string {
	return fmt.Sprintf("seckill:window:%d", voucherID)
}

// PrewarmVoucher publishes the stock counter and sale window for a voucher
func (s *RedisAdmissionStore) PrewarmVoucher(ctx context.Context, voucher *model.SeckillVoucher) error {
	if err := s.client.Set(ctx, stockKey(voucher.VoucherID), voucher.Stock, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish voucher stock: %w", err)
	}
	err := s.client.HSet(ctx, windowKey(voucher.VoucherID),
		"begin", voucher.BeginTime.Unix(),
		"end", voucher.EndTime.Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to publish voucher window: %w", err)
	}

	s.logger.Info("Voucher prewarmed",
		zap.Int64("voucher_id", voucher.VoucherID),
		zap.Int64("stock", voucher.Stock))
	return nil
}

// Reserve attempts to admit one order through the admission script
func (s *RedisAdmissionStore) Reserve(ctx context.Context, voucherID, userID, orderID int64) (AdmissionCode, error) {
	keys := []string{
		stockKey(voucherID),
		purchaserKey(voucherID),
		windowKey(voucherID),
		s.stream,
	}
	result, err := admissionScript.Run(ctx, s.client, keys,
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(orderID, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("admission script failed: %w", err)
	}
	return AdmissionCode(result), nil
}
