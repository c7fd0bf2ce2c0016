package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

const stockKeyPrefix = "stock:"

// check-and-decrement must be atomic, so it runs server-side
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

var restockScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

local current = tonumber(redis.call('GET', key) or '0')
if current + delta < 0 then
	return -1
end

return redis.call('INCRBY', key, delta)
`)

// RedisLedger keeps per-product stock counters in Redis. Atomicity of
// reserve comes from the Lua script running single-threaded on the server.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (r *RedisLedger) GetAvailable(ctx context.Context, productID string) (int, error) {
	val, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return val, nil
}

// List scans the stock keyspace. Redis only tracks the counter, so the
// version and timestamp fields stay zero.
func (r *RedisLedger) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	var out []domain.InventoryRecord
	iter := r.client.Scan(ctx, 0, stockKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Int()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get stock: %w", err)
		}
		out = append(out, domain.InventoryRecord{
			ProductID: strings.TrimPrefix(key, stockKeyPrefix),
			Available: val,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan stock keys: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *RedisLedger) Reserve(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := reserveScript.Run(ctx, r.client, []string{stockKeyPrefix + productID}, quantity).Int()
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}
	return result == 1, nil
}

func (r *RedisLedger) Restock(ctx context.Context, productID string, delta int) (int, error) {
	result, err := restockScript.Run(ctx, r.client, []string{stockKeyPrefix + productID}, delta).Int()
	if err != nil {
		return 0, fmt.Errorf("restock: %w", err)
	}
	if result < 0 {
		return 0, ErrNegativeStock
	}
	return result, nil
}

func (r *RedisLedger) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	if err := r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err(); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}
