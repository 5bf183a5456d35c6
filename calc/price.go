// Package calc derives consumer buy and sell prices from spot prices.
package calc

import (
	"github.com/icodeforyou/spotpilot-go/price"
	"github.com/icodeforyou/spotpilot-go/slice"
	"github.com/shopspring/decimal"
)

type Tariff struct {
	Tax          decimal.Decimal // energy tax incl. VAT, per kWh bought
	TaxReduction decimal.Decimal // per kWh sold
	GridBenefit  decimal.Decimal // per kWh sold
}

func NewTariff(tax, taxReduction, gridBenefit float64) Tariff {
	return Tariff{
		Tax:          decimal.NewFromFloat(tax),
		TaxReduction: decimal.NewFromFloat(taxReduction),
		GridBenefit:  decimal.NewFromFloat(gridBenefit),
	}
}

func (t Tariff) BuyPrice(spot decimal.Decimal) decimal.Decimal {
	return spot.Add(t.Tax)
}

func (t Tariff) SellPrice(spot decimal.Decimal) decimal.Decimal {
	return spot.Add(t.TaxReduction).Add(t.GridBenefit)
}

// SellTicks maps spot ticks to sell price ticks. Ticks without a value are
// passed on unchanged.
func (t Tariff) SellTicks(ticks []price.RawTick) []price.RawTick {
	return slice.Map(ticks, func(tick price.RawTick) price.RawTick {
		if tick.Value == nil {
			return tick
		}
		v := t.SellPrice(*tick.Value)
		tick.Value = &v
		return tick
	})
}

// CashFlow is the value of an hour's net grid exchange, positive when net
// exporting.
func (t Tariff) CashFlow(importKWh, exportKWh float64, spot decimal.Decimal) decimal.Decimal {
	net := decimal.NewFromFloat(exportKWh - importKWh)
	switch net.Sign() {
	case 1:
		return net.Mul(t.SellPrice(spot))
	case -1:
		return net.Mul(t.BuyPrice(spot))
	}
	return decimal.Zero
}
