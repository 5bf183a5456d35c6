package evcharge

import (
	"context"

	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/types/maybe"
)

const chargingState = "Charging"

// Vehicle is a snapshot of the car and feature toggle as last reported.
// Reading it never wakes the car.
type Vehicle struct {
	Enabled  bool
	Home     bool
	Cable    bool
	Charging bool
	SOC      maybe.Maybe[float64]
	Limit    maybe.Maybe[float64]
	Amps     maybe.Maybe[float64]
}

func ReadVehicle(ctx context.Context, s entity.Store) Vehicle {
	return Vehicle{
		Enabled:  entity.Bool(ctx, s, entity.EvSmartCharging),
		Home:     entity.String(ctx, s, entity.EvLocation).ValueOrDefault("") == entity.HomeLocation,
		Cable:    entity.Bool(ctx, s, entity.EvChargeCable),
		Charging: entity.String(ctx, s, entity.EvCharging).ValueOrDefault("") == chargingState,
		SOC:      entity.Float(ctx, s, entity.EvBatteryLevel),
		Limit:    entity.Float(ctx, s, entity.EvChargeLimit),
		Amps:     entity.Float(ctx, s, entity.EvChargeCurrent),
	}
}

// Ready reports whether the feature is on and the car can charge at home.
func (v Vehicle) Ready() bool {
	return v.Enabled && v.Home && v.Cable
}
