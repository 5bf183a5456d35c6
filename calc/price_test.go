package calc

import (
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTariffPrices(t *testing.T) {
	tariff := NewTariff(0.535, 0.6, 0.07)
	assert.True(t, d("1.535").Equal(tariff.BuyPrice(d("1"))))
	assert.True(t, d("1.67").Equal(tariff.SellPrice(d("1"))))
	assert.True(t, d("0.17").Equal(tariff.SellPrice(d("-0.5"))), "negative spot")
}

func TestCashFlow(t *testing.T) {
	tariff := NewTariff(0.5, 0.6, 0)
	tests := []struct {
		name             string
		imported, export float64
		want             string
	}{
		{"net export", 1, 3, "3.2"},
		{"net import", 3, 1, "-3"},
		{"balanced", 2, 2, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tariff.CashFlow(tt.imported, tt.export, d("1"))
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestSellTicks(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ticks := []price.RawTick{
		price.NewRawTick(start, start.Add(time.Hour), d("0.4")),
		{Start: &start},
	}
	got := NewTariff(0, 0.6, 0).SellTicks(ticks)
	require.Len(t, got, 2)
	assert.True(t, d("1").Equal(*got[0].Value))
	assert.Nil(t, got[1].Value)
	assert.True(t, d("0.4").Equal(*ticks[0].Value), "input is not modified")
}
