package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage"
)

func TestQuoteStore_InsertAndGetByOrderID(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.QuoteRecord{OrderID: "o1", Venue: "Raydium", AmountOut: 95}))
	require.NoError(t, store.Insert(ctx, &domain.QuoteRecord{OrderID: "o1", Venue: "Meteora", AmountOut: 96, Selected: true}))
	require.NoError(t, store.Insert(ctx, &domain.QuoteRecord{OrderID: "o2", Venue: "Raydium", AmountOut: 47.5}))

	got, err := store.GetByOrderID(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Raydium", got[0].Venue)
	assert.Equal(t, "Meteora", got[1].Venue)
	assert.True(t, got[1].Selected)

	empty, err := store.GetByOrderID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestQuoteStore_InsertInvalid(t *testing.T) {
	store := NewQuoteStore()
	assert.ErrorIs(t, store.Insert(context.Background(), &domain.QuoteRecord{OrderID: "o1"}), storage.ErrInvalidInput)
}
