package rules

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/internal/domain"
)

func TestStaticProvider_RegisterThenLookup(t *testing.T) {
	p := NewStaticProvider()
	want := domain.SymbolRules{
		MinPrice:      decimal.RequireFromString("0.01"),
		MinPriceDenom: decimal.RequireFromString("0.01"),
		MinQty:        decimal.RequireFromString("0.001"),
		MinQtyDenom:   decimal.RequireFromString("0.001"),
		MinNotional:   decimal.RequireFromString("10"),
	}
	p.Register("BTC", "USDT", want)

	got, err := p.GetSymbolRules(context.Background(), "BTC", "USDT")
	require.NoError(t, err)
	assert.True(t, got.MinPriceDenom.Equal(want.MinPriceDenom))
	assert.True(t, got.MinQtyDenom.Equal(want.MinQtyDenom))
	assert.True(t, got.MinNotional.Equal(want.MinNotional))
}

func TestStaticProvider_UnknownSymbolErrors(t *testing.T) {
	p := NewStaticProvider()
	_, err := p.GetSymbolRules(context.Background(), "ETH", "USDT")
	assert.Error(t, err)
}
