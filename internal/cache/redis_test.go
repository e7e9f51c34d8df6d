package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyhq/billing-portal/internal/config"
)

type testStruct struct {
	Name       string
	PriceCents int64
}

func setupTestCache(t *testing.T) *Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		Password:     "",
		DB:           0,
		User:         "",
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	return cache
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	expected := testStruct{Name: "Growth", PriceCents: 7900}
	err := cache.Set("services:catalog", expected, time.Minute)
	require.NoError(t, err)

	var actual testStruct
	found, err := cache.Get("services:catalog", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache := setupTestCache(t)

	var out testStruct
	found, err := cache.Get("no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set("services:catalog", testStruct{Name: "Starter"}, time.Minute))
	require.NoError(t, cache.Invalidate("services:catalog"))

	var out testStruct
	found, err := cache.Get("services:catalog", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
