package memory

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/errors"
)

// RedisConfig configures the Redis memory database.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces warble keys inside a shared instance. Default
	// "warble:".
	Prefix string
}

// RedisDatabase stores memory values in Redis as JSON.
type RedisDatabase struct {
	cfg    RedisConfig
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis creates a Redis database. Call Connect before use.
func NewRedis(cfg RedisConfig, logger zerolog.Logger) *RedisDatabase {
	if cfg.Prefix == "" {
		cfg.Prefix = "warble:"
	}
	return &RedisDatabase{
		cfg:    cfg,
		logger: logger.With().Str("component", "memory").Str("db", "redis").Logger(),
	}
}

func (r *RedisDatabase) Name() string { return "redis" }

// Connect opens the client and pings the server.
func (r *RedisDatabase) Connect(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Addr,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewTransportError("redis", 0, err)
	}
	r.logger.Info().Str("addr", r.cfg.Addr).Msg("connected")
	return nil
}

// Disconnect closes the client. Safe to call when Connect never succeeded.
func (r *RedisDatabase) Disconnect(_ context.Context) error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *RedisDatabase) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.cfg.Prefix+key, data, 0).Err(); err != nil {
		return errors.NewTransportError("redis", 0, err)
	}
	return nil
}

func (r *RedisDatabase) Get(ctx context.Context, key string) (any, error) {
	data, err := r.client.Get(ctx, r.cfg.Prefix+key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.NewTransportError("redis", 0, err)
	}
	var val any
	if err := json.Unmarshal(data, &val); err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisDatabase) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.cfg.Prefix+key).Err(); err != nil {
		return errors.NewTransportError("redis", 0, err)
	}
	return nil
}
