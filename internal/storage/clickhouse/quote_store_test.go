package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/internal/domain"
)

func TestQuoteStore_InsertAndGetByOrderID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteStore(conn)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	records := []*domain.QuoteRecord{
		{
			OrderID:   "order-1",
			Venue:     "Raydium",
			TokenIn:   "SOL",
			TokenOut:  "USDC",
			AmountIn:  100,
			AmountOut: 95,
			Price:     0.95,
			Liquidity: 1000000,
			Selected:  false,
			Timestamp: now,
		},
		{
			OrderID:   "order-1",
			Venue:     "Meteora",
			TokenIn:   "SOL",
			TokenOut:  "USDC",
			AmountIn:  100,
			AmountOut: 96,
			Price:     0.96,
			Liquidity: 1000000,
			Selected:  true,
			Timestamp: now + 1,
		},
		{
			OrderID:   "order-2",
			Venue:     "Raydium",
			TokenIn:   "SOL",
			TokenOut:  "USDC",
			AmountIn:  50,
			AmountOut: 47.5,
			Price:     0.95,
			Liquidity: 1000000,
			Selected:  true,
			Timestamp: now + 2,
		},
	}
	for _, r := range records {
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.GetByOrderID(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Oldest first.
	assert.Equal(t, "Raydium", got[0].Venue)
	assert.False(t, got[0].Selected)
	assert.Equal(t, float64(95), got[0].AmountOut)

	assert.Equal(t, "Meteora", got[1].Venue)
	assert.True(t, got[1].Selected)
	assert.Equal(t, 0.96, got[1].Price)
	assert.Equal(t, now+1, got[1].Timestamp)
}

func TestQuoteStore_GetByOrderIDEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteStore(conn)

	got, err := store.GetByOrderID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
