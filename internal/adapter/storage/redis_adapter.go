package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// addStockScript applies the delta only when the key exists and returns the
// post-add value. Replying {0, 0} for an absent key keeps INCRBY from
// materializing a counter that was never initialized from the ledger.
var addStockScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return {0, 0}
end

local new = redis.call('INCRBY', key, delta)
return {1, new}
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetStock(ctx context.Context, ticketID string) (int64, bool, error) {
	value, err := r.client.Get(ctx, stockKeyPrefix+ticketID).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (r *RedisAdapter) AddStock(ctx context.Context, ticketID string, delta int64) (int64, bool, error) {
	key := stockKeyPrefix + ticketID

	result, err := addStockScript.Run(ctx, r.client, []string{key}, delta).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(result) != 2 || result[0] == 0 {
		return 0, false, nil
	}
	return result[1], true, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, ticketID string, value int64, ttl time.Duration) error {
	return r.client.Set(ctx, stockKeyPrefix+ticketID, value, ttl).Err()
}
