package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/domain"
)

func TestMemClient_CreateOrderIsIdempotentByClientOrderID(t *testing.T) {
	c := NewMemClient()
	req := CreateOrderRequest{BaseAsset: "BTC", QuoteAsset: "USDT", ClientOrderID: "abc"}

	first, err := c.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := c.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ExtOrderRef, second.ExtOrderRef, "a replayed client order id must not mint a second exchange order")
}

func TestMemClient_NextStateQueueIsConsumedFIFO(t *testing.T) {
	c := NewMemClient()
	c.NextState["BTC/USDT"] = []domain.OrderState{domain.OrderFilled, domain.OrderRejected}

	resp1, err := c.CreateOrder(context.Background(), CreateOrderRequest{BaseAsset: "BTC", QuoteAsset: "USDT", ClientOrderID: "a"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, resp1.OrderState)

	resp2, err := c.CreateOrder(context.Background(), CreateOrderRequest{BaseAsset: "BTC", QuoteAsset: "USDT", ClientOrderID: "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, resp2.OrderState)

	resp3, err := c.CreateOrder(context.Background(), CreateOrderRequest{BaseAsset: "BTC", QuoteAsset: "USDT", ClientOrderID: "c"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderOpened, resp3.OrderState, "the queue is drained, so the default state applies")
}

func TestMemClient_FailNextFiresOnceThenSucceeds(t *testing.T) {
	c := NewMemClient()
	c.FailNext["x"] = true
	req := CreateOrderRequest{BaseAsset: "BTC", QuoteAsset: "USDT", ClientOrderID: "x"}

	_, err := c.CreateOrder(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExchangeTransport))

	_, err = c.CreateOrder(context.Background(), req)
	assert.NoError(t, err, "FailNext is consumed after firing once")
}

func TestMemClient_CancelOrder_FailNext(t *testing.T) {
	c := NewMemClient()
	c.FailNext["y"] = true

	_, err := c.CancelOrder(context.Background(), "BTC", "USDT", "y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExchangeTransport))

	resp, err := c.CancelOrder(context.Background(), "BTC", "USDT", "y")
	require.NoError(t, err)
	assert.Equal(t, "y", resp.ClientOrderID)
}
