package cache

import (
	"context"
	"testing"
	"time"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	bars := []models.PriceBar{{Close: 160}, {Close: 165}}
	require.NoError(t, c.Set(ctx, Key("history", "AAPL"), bars, time.Minute))

	var got []models.PriceBar
	found, err := c.Get(ctx, Key("history", "AAPL"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 165.0, got[1].Close)

	found, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2024, 3, 26, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "fx:USDILS", 3.7, 5*time.Minute))

	var rate float64
	found, _ := c.Get(ctx, "fx:USDILS", &rate)
	assert.True(t, found)

	now = now.Add(5 * time.Minute)
	found, _ = c.Get(ctx, "fx:USDILS", &rate)
	assert.False(t, found, "entry expires at its TTL")
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestMemory_ValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	bars := []models.PriceBar{{Close: 1}}
	require.NoError(t, c.Set(ctx, "k", bars, time.Minute))
	bars[0].Close = 99

	var got []models.PriceBar
	_, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].Close)
}

func TestNew_Backends(t *testing.T) {
	c, err := New(common.CacheConfig{Backend: "memory", TTL: "1m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(common.CacheConfig{Backend: "none", TTL: "1m"}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(common.CacheConfig{Backend: "etcd", TTL: "1m"}, nil)
	assert.Error(t, err)
}
