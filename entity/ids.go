package entity

// Inputs, mirrored from the home automation host.
const (
	SpotPrice = "sensor.spot_price"             // attributes raw_today, raw_tomorrow, tomorrow_valid
	SellPrice = "sensor.electricity_sell_price" // flat state, optional raw_today/raw_tomorrow
	BuyPrice  = "sensor.electricity_buy_price"  // current buy price, history feeds cost accounting

	HotWaterTop    = "sensor.hot_water_top_bt7"
	HotWaterCharge = "sensor.hot_water_charge_bt6"
	ManualOverride = "input_boolean.heat_manual_override"

	InverterPower       = "sensor.inverter_active_power" // W
	GridPower           = "sensor.grid_active_power"     // W, negative when exporting
	WallConnectorOn     = "binary_sensor.wall_connector_contactor_closed"
	SolarTodayRemaining = "sensor.solar_forecast_today_remaining" // kWh
	SolarTomorrow       = "sensor.solar_forecast_tomorrow"        // kWh
	SunRising           = "sensor.sun_rising"
	SunSetting          = "sensor.sun_setting"

	EvBatteryLevel  = "sensor.ev_battery_level"
	EvChargeLimit   = "number.ev_charge_limit"
	EvChargeCurrent = "number.ev_charge_current"
	EvChargeSwitch  = "switch.ev_charge"
	EvCharging      = "sensor.ev_charging" // "Charging" while charging
	EvChargeCable   = "binary_sensor.ev_charge_cable"
	EvLocation      = "device_tracker.ev_location"
	EvSmartCharging = "input_boolean.ev_smart_charging_enabled"

	GridExportedEnergy  = "sensor.grid_exported_energy"  // kWh counter
	SolarProducedEnergy = "sensor.solar_produced_energy" // kWh counter
	GridPurchasedEnergy = "sensor.grid_purchased_energy" // kWh counter
	WallConnectorEnergy = "sensor.wall_connector_energy" // Wh counter
	HeatPumpEnergy      = "sensor.heat_pump_energy"      // kWh counter
)

// Outputs, owned by this service.
const (
	HotWaterStatus        = "input_number.hot_water_heating_status"
	CostZoneHotWater      = "input_number.spot_price_cost_hot_water"
	CostZoneHeating       = "input_number.spot_price_cost"
	EvChargingStatus      = "input_number.ev_charging_status"
	EvChargingSchedule    = "input_text.ev_charging_schedule"
	SolarSavings          = "input_number.solar_savings"
	EvCostWithoutSolar    = "input_number.ev_charge_cost_without_solar"
	EvCostWithSolar       = "input_number.ev_charge_cost_with_solar"
	HeatPumpCostNoSolar   = "input_number.heat_pump_cost_without_solar"
	HeatPumpCostWithSolar = "input_number.heat_pump_cost_with_solar"
)

const HomeLocation = "home"

var outputs = map[string]bool{
	HotWaterStatus:        true,
	CostZoneHotWater:      true,
	CostZoneHeating:       true,
	EvChargingStatus:      true,
	EvChargingSchedule:    true,
	SolarSavings:          true,
	EvCostWithoutSolar:    true,
	EvCostWithSolar:       true,
	HeatPumpCostNoSolar:   true,
	HeatPumpCostWithSolar: true,
}

// IsOutput reports whether id is written by this service.
func IsOutput(id string) bool {
	return outputs[id]
}
