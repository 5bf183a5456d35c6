package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/price"
)

// Overview is a snapshot of the readings and decisions worth a glance.
type Overview struct {
	GridPower        any          `json:"grid_power"`
	SolarPower       any          `json:"solar_power"`
	SpotPrice        any          `json:"spot_price"`
	BuyPrice         any          `json:"buy_price"`
	SpotToday        *price.Stats `json:"spot_today,omitempty"`
	CostZoneHotWater any          `json:"cost_zone_hot_water"`
	CostZoneHeating  any          `json:"cost_zone_heating"`
	HotWaterStatus   any          `json:"hot_water_status"`
	EvChargingStatus any          `json:"ev_charging_status"`
	EvSchedule       any          `json:"ev_schedule"`
	SolarSavings     any          `json:"solar_savings"`
}

func NewOverviewHandler(logger *slog.Logger, b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		o := Overview{
			GridPower:        entity.Float(ctx, b, entity.GridPower).Any(),
			SolarPower:       entity.Float(ctx, b, entity.InverterPower).Any(),
			SpotPrice:        entity.Float(ctx, b, entity.SpotPrice).Any(),
			BuyPrice:         entity.Float(ctx, b, entity.BuyPrice).Any(),
			CostZoneHotWater: entity.Float(ctx, b, entity.CostZoneHotWater).Any(),
			CostZoneHeating:  entity.Float(ctx, b, entity.CostZoneHeating).Any(),
			HotWaterStatus:   entity.Float(ctx, b, entity.HotWaterStatus).Any(),
			EvChargingStatus: entity.Float(ctx, b, entity.EvChargingStatus).Any(),
			EvSchedule:       entity.String(ctx, b, entity.EvChargingSchedule).Any(),
			SolarSavings:     entity.Float(ctx, b, entity.SolarSavings).Any(),
		}

		feed, err := price.ReadFeed(ctx, b, entity.SpotPrice)
		if err != nil {
			logger.Warn("reading spot price feed", slog.Any("error", err))
		} else if stats, ok := price.Statistics(price.Values(price.Normalize(feed.Today))); ok {
			o.SpotToday = &stats
		}

		writeJSON(logger, w, http.StatusOK, o)
	}
}
