package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/internal/broadcast"
	"swap-engine/internal/domain"
	"swap-engine/internal/processor"
	"swap-engine/internal/queue"
	"swap-engine/internal/router"
	"swap-engine/internal/storage/memory"
	"swap-engine/internal/venue"
	"swap-engine/internal/venue/mock"
)

type testEnv struct {
	ts     *httptest.Server
	orders *memory.OrderStore
	queue  *queue.Queue
}

// newTestEnv wires the full pipeline with in-memory storage and
// deterministic venues behind an httptest server.
func newTestEnv(t *testing.T, providers []venue.Provider) *testEnv {
	t.Helper()

	orders := memory.NewOrderStore()
	registry := broadcast.NewRegistry(nil)
	rt := router.New(providers, memory.NewQuoteStore(), nil)
	proc := processor.New(orders, rt, registry, nil, processor.Config{
		BaseDelay: time.Millisecond,
	})

	q := queue.New(queue.NewMemoryStore(), proc, nil, queue.Config{Concurrency: 2})
	q.Start(context.Background())

	srv := New(orders, q, registry, nil)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		q.Close()
	})

	return &testEnv{ts: ts, orders: orders, queue: q}
}

func defaultProviders() []venue.Provider {
	return []venue.Provider{
		mock.New("Raydium", 5),
		mock.New("Meteora", 4),
	}
}

func (e *testEnv) execute(t *testing.T, body string) (*http.Response, ExecuteResponse) {
	t.Helper()

	resp, err := http.Post(e.ts.URL+"/api/orders/execute", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out ExecuteResponse
	if resp.StatusCode == http.StatusAccepted {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (e *testEnv) getOrder(t *testing.T, id string) (*http.Response, *domain.Order) {
	t.Helper()

	resp, err := http.Get(e.ts.URL + "/api/orders/" + id)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	var order domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	return resp, &order
}

const validBody = `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100"}`

func TestServer_ExecuteOrder(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, out := env.execute(t, validBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, out.OrderID)
	assert.Equal(t, domain.StatusPending, out.Status)
	assert.Equal(t, fmt.Sprintf("/api/orders/%s/status", out.OrderID), out.WSEndpoint)

	// The order executes asynchronously and lands confirmed.
	require.Eventually(t, func() bool {
		_, order := env.getOrder(t, out.OrderID)
		return order != nil && order.Status == domain.StatusConfirmed
	}, 5*time.Second, 20*time.Millisecond)

	_, order := env.getOrder(t, out.OrderID)
	require.NotNil(t, order)
	assert.Equal(t, "Meteora", order.SelectedVenue)
	assert.Equal(t, "96", order.AmountOut)
	assert.Equal(t, "0.96", order.ExecutionPrice)
	assert.NotEmpty(t, order.TxRef)
}

func TestServer_ExecuteValidation(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing type", `{"tokenIn":"SOL","tokenOut":"USDC","amountIn":"100"}`},
		{"unknown type", `{"type":"stop","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100"}`},
		{"limit not supported", `{"type":"limit","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100"}`},
		{"sniper not supported", `{"type":"sniper","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100"}`},
		{"missing tokens", `{"type":"market","amountIn":"100"}`},
		{"same tokens", `{"type":"market","tokenIn":"SOL","tokenOut":"SOL","amountIn":"100"}`},
		{"bad amount", `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"abc"}`},
		{"zero amount", `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"0"}`},
		{"negative amount", `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"-1"}`},
		{"slippage too high", `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100","slippageTolerance":51}`},
		{"slippage negative", `{"type":"market","tokenIn":"SOL","tokenOut":"USDC","amountIn":"100","slippageTolerance":-1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := env.execute(t, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	// Rejected submissions never reach the queue.
	stats, err := env.queue.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
}

func TestServer_ExecuteDefaultsSlippage(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, out := env.execute(t, validBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, order := env.getOrder(t, out.OrderID)
	require.NotNil(t, order)
	assert.Equal(t, 1.0, order.SlippageTolerance)
}

func TestServer_GetOrderNotFound(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, _ := env.getOrder(t, "missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListOrders(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	for i := 0; i < 3; i++ {
		resp, _ := env.execute(t, validBody)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp, err := http.Get(env.ts.URL + "/api/orders?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Count)
	assert.Len(t, out.Orders, 2)
}

func TestServer_ListOrdersBadLimit(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, err := http.Get(env.ts.URL + "/api/orders?limit=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_QueueStats(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, out := env.execute(t, validBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, order := env.getOrder(t, out.OrderID)
		return order != nil && order.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	statsResp, err := http.Get(env.ts.URL + "/api/queue/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats queue.Stats
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Completed)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, defaultProviders())

	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
