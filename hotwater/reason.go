// Package hotwater decides every quarter whether the hot water heater may run.
package hotwater

type Reason string

const (
	ReasonManualOverride       Reason = "manual_override"
	ReasonSolarOverride        Reason = "solar_override"
	ReasonCheapest3h           Reason = "cheapest_3h"
	ReasonCheapest3hStability  Reason = "cheapest_3h_stability"
	ReasonMorningGuarantee     Reason = "morning_guarantee"
	ReasonTempSafetyBelow40    Reason = "temp_safety_below_40"
	ReasonTempSafetyHysteresis Reason = "temp_safety_hysteresis_heating"
	ReasonDefaultBlock         Reason = "default_block"
	ReasonBT7Unavailable       Reason = "bt7_unavailable"
)

// cheapest reports whether the reason stems from the cheapest hours layer,
// which is what the stability rule protects.
func (r Reason) cheapest() bool {
	return r == ReasonCheapest3h || r == ReasonCheapest3hStability
}

const (
	Block = 0
	Allow = 1
)
