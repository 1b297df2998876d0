package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	appLogger "github.com/architeacher/gpstracker/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var (
	// KEYS[1] value key, KEYS[2] generation key; ARGV generation, value, ttl ms.
	setIfGenerationScript = redis.NewScript(`
		local current = tonumber(redis.call("GET", KEYS[2]) or "0")
		if current ~= tonumber(ARGV[1]) then
			return 0
		end
		if tonumber(ARGV[3]) > 0 then
			redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		else
			redis.call("SET", KEYS[1], ARGV[2])
		end
		return 1
	`)

	compareAndSwapScript = redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
			return 0
		end
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		return 1
	`)
)

type KeydbClient struct {
	client *redis.Client
	logger appLogger.Logger
	config config.Cache
}

func NewKeyDBClient(config config.Cache, logger appLogger.Logger) *KeydbClient {
	opts := &redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           int(config.DB),
		PoolSize:     int(config.PoolSize),
		MinIdleConns: int(config.MinIdleConns),
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
		MaxRetries:   int(config.MaxRetries),
	}

	return &KeydbClient{
		client: redis.NewClient(opts),
		logger: logger,
		config: config,
	}
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	startTime := time.Now()

	result, err := c.client.Get(ctx, key).Bytes()

	c.logger.Debug().
		Str("key", key).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("hit", err == nil).
		Msg("keydb get operation")

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}

		c.logger.Error().
			Err(err).
			Str("key", key).
			Msg("keydb get operation failed")

		return nil, err
	}

	return result, nil
}

// GetWithGeneration reads the generation counter and the value in one round
// trip. The generation is read first so it never postdates the value.
func (c *KeydbClient) GetWithGeneration(ctx context.Context, key, generationKey string) ([]byte, int64, error) {
	values, err := c.client.MGet(ctx, generationKey, key).Result()
	if err != nil {
		return nil, 0, err
	}

	var generation int64
	if raw, ok := values[0].(string); ok {
		generation, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing generation of %s: %w", generationKey, err)
		}
	}

	raw, ok := values[1].(string)
	if !ok {
		return nil, generation, redis.Nil
	}

	return []byte(raw), generation, nil
}

func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	startTime := time.Now()

	err := c.client.Set(ctx, key, value, ttl).Err()

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb set operation")

	return err
}

// SetIfGeneration stores value only while the generation counter still
// equals generation. It reports whether the value was written.
func (c *KeydbClient) SetIfGeneration(ctx context.Context, key, generationKey string, generation int64, value []byte, ttl time.Duration) (bool, error) {
	result, err := setIfGenerationScript.Run(ctx, c.client, []string{key, generationKey}, generation, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("conditional set of %s: %w", key, err)
	}

	return result == 1, nil
}

// Incr bumps a counter and returns its new value.
func (c *KeydbClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *KeydbClient) Lock(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	acquired, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	return acquired, nil
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	startTime := time.Now()

	err := c.client.Del(ctx, keys...).Err()

	c.logger.Debug().
		Strs("keys", keys).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb delete operation")

	return err
}

// IsHealthy checks if the cache is available.
func (c *KeydbClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return c.Ping(ctx) == nil
}

// GetInt64 returns -1 when the key does not exist, as GCRA stores expect.
func (c *KeydbClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, time.Now(), nil
		}

		return 0, time.Time{}, err
	}

	return val, time.Now(), nil
}

// SetInt64NX sets an int64 value if the key doesn't exist.
func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// CompareAndSwapInt64 atomically updates a value if it matches the expected old value.
func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	result, err := compareAndSwapScript.Run(ctx, c.client, []string{key}, old, new, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

// Scan iterates over keys matching a pattern.
func (c *KeydbClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("scanning keys: %w", err)
	}

	return keys, nextCursor, nil
}

func (c *KeydbClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns once the server has confirmed the subscription.
func (c *KeydbClient) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, channels...)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, fmt.Errorf("subscribing to %v: %w", channels, err)
	}

	return pubsub, nil
}
