package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reserva/internal/models"
)

type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// TenantCache is a read-through cache for tenant rows (active flag and
// commission rate), which every request on the hot path consults.
type TenantCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTenantCache(cfg Config) (*TenantCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Minute
	}

	return &TenantCache{client: rdb, ttl: ttl}, nil
}

func tenantKey(id uuid.UUID) string {
	return "tenant:" + id.String()
}

func (c *TenantCache) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	raw, err := c.client.Get(ctx, tenantKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	tenant := &models.Tenant{}
	if err := json.Unmarshal(raw, tenant); err != nil {
		return nil, fmt.Errorf("invalid tenant in cache: %w", err)
	}
	return tenant, nil
}

func (c *TenantCache) Set(ctx context.Context, tenant *models.Tenant) error {
	raw, err := json.Marshal(tenant)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tenantKey(tenant.ID), raw, c.ttl).Err()
}

// Invalidate drops a tenant's cached row after a commission or
// activation change so the next read sees the new value.
func (c *TenantCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, tenantKey(id)).Err()
}

func (c *TenantCache) Close() error {
	return c.client.Close()
}
