package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/internal/domain"
	"swap-engine/internal/storage/memory"
	"swap-engine/internal/venue"
	"swap-engine/internal/venue/mock"
)

func marketRequest(amountIn string) domain.SwapRequest {
	return domain.SwapRequest{
		Type:     domain.OrderTypeMarket,
		TokenIn:  "SOL",
		TokenOut: "USDC",
		AmountIn: amountIn,
	}
}

func TestRouter_BestQuoteSelectsHighestOutput(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5),
		mock.New("Meteora", 4),
	}, nil, nil)

	q, err := rt.BestQuote(context.Background(), "order-1", marketRequest("100"))
	require.NoError(t, err)
	require.NotNil(t, q)

	// 4% spread beats 5% spread.
	assert.Equal(t, "Meteora", q.Venue)
	assert.Equal(t, "96", q.AmountOut.String())
}

func TestRouter_BestQuoteSurvivesPartialFailure(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5, mock.WithQuoteError(errors.New("rpc timeout"))),
		mock.New("Meteora", 4),
	}, nil, nil)

	q, err := rt.BestQuote(context.Background(), "order-1", marketRequest("100"))
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "Meteora", q.Venue)
}

func TestRouter_BestQuoteAllVenuesFail(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5, mock.WithQuoteError(errors.New("down"))),
		mock.New("Meteora", 4, mock.WithQuoteError(errors.New("down"))),
	}, nil, nil)

	q, err := rt.BestQuote(context.Background(), "order-1", marketRequest("100"))
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestRouter_BestQuoteTieBreaksOnRegistrationOrder(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("First", 5),
		mock.New("Second", 5),
	}, nil, nil)

	q, err := rt.BestQuote(context.Background(), "order-1", marketRequest("100"))
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "First", q.Venue)
}

func TestRouter_BestQuoteRecordsAllQuotes(t *testing.T) {
	quotes := memory.NewQuoteStore()
	rt := New([]venue.Provider{
		mock.New("Raydium", 5),
		mock.New("Meteora", 4),
	}, quotes, nil)

	_, err := rt.BestQuote(context.Background(), "order-1", marketRequest("100"))
	require.NoError(t, err)

	records, err := quotes.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	selected := map[string]bool{}
	for _, r := range records {
		selected[r.Venue] = r.Selected
		assert.Equal(t, "SOL", r.TokenIn)
		assert.Equal(t, "USDC", r.TokenOut)
		assert.Equal(t, float64(100), r.AmountIn)
		assert.NotZero(t, r.Timestamp)
	}
	assert.False(t, selected["Raydium"])
	assert.True(t, selected["Meteora"])
}

func TestRouter_SettleOn(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5),
		mock.New("Meteora", 4),
	}, nil, nil)

	s, err := rt.SettleOn(context.Background(), "Meteora", marketRequest("100"))
	require.NoError(t, err)
	assert.NotEmpty(t, s.TxRef)
	assert.Equal(t, "0.96", s.ExecutionPrice.String())
}

func TestRouter_SettleOnUnknownVenue(t *testing.T) {
	rt := New([]venue.Provider{mock.New("Raydium", 5)}, nil, nil)

	_, err := rt.SettleOn(context.Background(), "Orca", marketRequest("100"))
	assert.ErrorIs(t, err, ErrUnknownVenue)
}

func TestRouter_SettleOnSettlementFailure(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5, mock.WithSettleError(errors.New("blockhash expired"))),
	}, nil, nil)

	_, err := rt.SettleOn(context.Background(), "Raydium", marketRequest("100"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownVenue)
}

func TestRouter_Venues(t *testing.T) {
	rt := New([]venue.Provider{
		mock.New("Raydium", 5),
		mock.New("Meteora", 4),
	}, nil, nil)

	assert.Equal(t, []string{"Raydium", "Meteora"}, rt.Venues())
}
