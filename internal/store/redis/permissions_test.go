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

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/authz"
)

func newTestCache(t *testing.T) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewPermissionCacheWithClient(client, time.Hour)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func testAccounts() []authz.AccountsWithPermissions {
	return []authz.AccountsWithPermissions{{
		AccountID: "acc-1",
		Permissions: []authz.AccountPermission{
			{ResourceType: authz.ResourceDocument, Permission: authz.PermissionEdit},
			{ResourceType: authz.ResourceAccount, Permission: authz.PermissionAdmin},
		},
	}}
}

func TestPermissionCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.SetAccountsForUser(ctx, "user-1", testAccounts()))

	got, err := cache.AccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, testAccounts(), got)
}

func TestPermissionCacheMissReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	got, err := cache.AccountsForUser(ctx, "user-unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPermissionCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.SetAccountsForUser(ctx, "user-1", testAccounts()))
	require.NoError(t, cache.Invalidate(ctx, "user-1"))

	got, err := cache.AccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPermissionCacheInvalidateMissingKey(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.NoError(t, cache.Invalidate(context.Background(), "user-unknown"))
}

func TestPermissionCacheEntryCarriesTTL(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetAccountsForUser(ctx, "user-1", testAccounts()))
	assert.Equal(t, time.Hour, mr.TTL(cacheKey("user-1")))
}

func TestPermissionCacheEntryExpires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetAccountsForUser(ctx, "user-1", testAccounts()))
	mr.FastForward(2 * time.Hour)

	got, err := cache.AccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPermissionCacheDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, mr.Set(cacheKey("user-1"), "not json"))

	// A corrupt entry reads as a miss and is deleted.
	got, err := cache.AccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists(cacheKey("user-1")))
}

func TestPermissionCacheKeyIsVersioned(t *testing.T) {
	assert.Equal(t, "authz:accounts:v1:user-1", cacheKey("user-1"))
}

func TestNewPermissionCacheWithClientDefaultsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewPermissionCacheWithClient(client, 0)
	defer cache.Close()
	assert.Equal(t, DefaultTTL, cache.ttl)
}
