// Copyright 2026 The Docuflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redis holds the permission cache, the secondary store of coarse
// per-user editable-account permissions.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/docuflow/docuflow/internal/authz"
)

// cacheVersion tags every key. Bumping it orphans old entries instead of
// corrupting readers after a format change.
const cacheVersion = 1

// DefaultTTL is the correctness backstop against missed invalidation paths.
const DefaultTTL = 24 * time.Hour

// PermissionCache implements authz.PermissionCache on Redis.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Config holds cache configuration
type Config struct {
	URL string
	TTL time.Duration
}

// NewPermissionCache connects to Redis and verifies the connection.
func NewPermissionCache(cfg Config) (*PermissionCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewPermissionCacheWithClient(client, cfg.TTL), nil
}

// NewPermissionCacheWithClient wraps an existing client. Used by tests.
func NewPermissionCacheWithClient(client *redis.Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PermissionCache{client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("authz:accounts:v%d:%s", cacheVersion, userID)
}

// AccountsForUser implements authz.PermissionCache. A miss returns an empty
// slice, never an error.
func (c *PermissionCache) AccountsForUser(ctx context.Context, userID string) ([]authz.AccountsWithPermissions, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var accounts []authz.AccountsWithPermissions
	if err := json.Unmarshal([]byte(data), &accounts); err != nil {
		// Corrupt entry; drop it and report a miss.
		c.client.Del(ctx, cacheKey(userID))
		return nil, nil
	}
	return accounts, nil
}

// SetAccountsForUser implements authz.PermissionCache
func (c *PermissionCache) SetAccountsForUser(ctx context.Context, userID string, accounts []authz.AccountsWithPermissions) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	return c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err()
}

// Invalidate implements authz.PermissionCache
func (c *PermissionCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, cacheKey(userID)).Err()
}

// Ping checks Redis connectivity
func (c *PermissionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *PermissionCache) Close() error {
	return c.client.Close()
}
