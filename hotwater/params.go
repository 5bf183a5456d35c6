package hotwater

type Params struct {
	SolarThreshold   float64 // W inverter output allowing heating
	CheapestHours    int
	MorningFromHour  int     // morning guarantee active from this hour ...
	MorningDeadline  int     // ... until this hour the next morning
	CoolingRate      float64 // °C per hour
	MorningTarget    float64 // °C at the deadline
	HeatPerQuarter   float64 // °C per 15 minutes of heating
	MaxQuarters      int
	SafetyLow        float64
	SafetyHigh       float64
	SafetyMaxZone    int
	DefaultCostZone  int
	HysteresisStatus float64
}

func DefaultParams() Params {
	return Params{
		SolarThreshold:   3000,
		CheapestHours:    3,
		MorningFromHour:  18,
		MorningDeadline:  6,
		CoolingRate:      1.5,
		MorningTarget:    50,
		HeatPerQuarter:   1.25,
		MaxQuarters:      8,
		SafetyLow:        40,
		SafetyHigh:       45,
		SafetyMaxZone:    2,
		DefaultCostZone:  3,
		HysteresisStatus: 0.5,
	}
}
