package list_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/mailinglist/internal/list"
)

func TestMemoryAvailabilityExpires(t *testing.T) {
	c := list.NewMemoryAvailability()
	ctx := context.Background()

	_, ok := c.Get(ctx, "1")
	assert.False(t, ok)

	c.Set(ctx, "1", false, time.Hour)
	available, ok := c.Get(ctx, "1")
	assert.True(t, ok)
	assert.False(t, available)

	c.Set(ctx, "1", true, -time.Second)
	_, ok = c.Get(ctx, "1")
	assert.False(t, ok)
}

func TestRedisAvailability(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := list.NewRedisAvailability(client, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "7")
	assert.False(t, ok)

	c.Set(ctx, "7", true, 10*time.Second)
	available, ok := c.Get(ctx, "7")
	assert.True(t, ok)
	assert.True(t, available)
	assert.True(t, mr.Exists("mailinglist:available:7"))

	mr.FastForward(11 * time.Second)
	_, ok = c.Get(ctx, "7")
	assert.False(t, ok)
}
