package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

const (
	productKeyPrefix  = "product:"
	idempotencyKeyTTL = 24 * time.Hour
)

// Returns the full hash after a successful check-and-decrement, nil otherwise.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])
local expected = tonumber(ARGV[2])

if redis.call('EXISTS', key) == 0 then
	return false
end

local stock = tonumber(redis.call('HGET', key, 'stock'))
local version = tonumber(redis.call('HGET', key, 'version'))
if version ~= expected or stock < quantity then
	return false
end

redis.call('HINCRBY', key, 'stock', -quantity)
redis.call('HINCRBY', key, 'version', 1)
redis.call('HSET', key, 'updated_at', ARGV[3])
return redis.call('HGETALL', key)
`)

var createProductScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
	return 0
end
redis.call('HSET', key, unpack(ARGV))
return 1
`)

// RedisAdapter is a stock ledger over one Redis hash per product and the
// idempotency key store. It does not persist orders.
type RedisAdapter struct {
	client *redis.Client
	keyTTL time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, keyTTL: idempotencyKeyTTL}
}

// WithKeyTTL overrides how long idempotency keys are kept.
func (r *RedisAdapter) WithKeyTTL(ttl time.Duration) *RedisAdapter {
	r.keyTTL = ttl
	return r
}

func (r *RedisAdapter) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Stock < 0 {
		return nil, fmt.Errorf("create product: negative stock %d", p.Stock)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.Version = domain.InitialVersion
	p.CreatedAt = now
	p.UpdatedAt = now

	created, err := createProductScript.Run(ctx, r.client, []string{productKeyPrefix + p.ID},
		"id", p.ID,
		"name", p.Name,
		"price", p.Price.String(),
		"stock", p.Stock,
		"version", p.Version,
		"created_at", now.Format(time.RFC3339Nano),
		"updated_at", now.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("create product %s: %w", p.ID, err)
	}
	if created == 0 {
		return nil, fmt.Errorf("create product %s: %w", p.ID, domain.ErrProductExists)
	}

	return &p, nil
}

func (r *RedisAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKeyPrefix+productID).Result()
	if err != nil {
		return nil, fmt.Errorf("read product %s: %w", productID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseProduct(fields)
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, productID string, quantity, expectedVersion int) (*domain.Product, error) {
	key := productKeyPrefix + productID
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pairs, err := decrementStockScript.Run(ctx, r.client, []string{key}, quantity, expectedVersion, now).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decrement stock %s: %w", productID, err)
	}

	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return parseProduct(fields)
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.keyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func parseProduct(fields map[string]string) (*domain.Product, error) {
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("parse stock: %w", err)
	}
	version, err := strconv.Atoi(fields["version"])
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}

	p := &domain.Product{
		ID:      fields["id"],
		Name:    fields["name"],
		Price:   price,
		Stock:   stock,
		Version: version,
	}
	// timestamps are informational; tolerate hashes written without them
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return p, nil
}
