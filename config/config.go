package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/spotpilot-go/costs"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hotwater"
	"github.com/icodeforyou/spotpilot-go/logging"
	"github.com/icodeforyou/spotpilot-go/solar"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int
}

type AppConfigDatabase struct {
	Path string
	// How many days history and price ticks are kept before they get purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files are kept before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	return valueOr(d.DataRetentionDays, 90)
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	return valueOr(d.BackupRetentionDays, 90)
}

type AppConfigMqtt struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID *string `mapstructure:"client_id"`
	// Entity states are read from <state_topic>/<entity id>
	StateTopic *string `mapstructure:"state_topic"`
	// Owned entities and device commands are published below this topic
	CommandTopic *string `mapstructure:"command_topic"`
	// Warn when no state message arrived for this long
	Watchdog *time.Duration `mapstructure:"watchdog"`
	// Moving average window per entity id, e.g. grid power readings
	Smoothing map[string]int `mapstructure:"smoothing"`
}

func (m AppConfigMqtt) GetClientID() string {
	return valueOr(m.ClientID, "spotpilot")
}

func (m AppConfigMqtt) GetStateTopic() string {
	return strings.TrimSuffix(valueOr(m.StateTopic, "spotpilot/state"), "/")
}

func (m AppConfigMqtt) GetCommandTopic() string {
	return strings.TrimSuffix(valueOr(m.CommandTopic, "spotpilot/command"), "/")
}

func (m AppConfigMqtt) GetWatchdog() time.Duration {
	return valueOr(m.Watchdog, 5*time.Minute)
}

type AppConfigEnergyPrice struct {
	Area   string  `mapstructure:"area"`   // "SE1", "SE2", "SE3", "SE4"
	Source *string `mapstructure:"source"` // "elprisetjustnu" or "nordpool", the other one is the fallback
	// Energy tax in SEK/kWh including VAT (energiskatt inkl. moms)
	Tax float64 `mapstructure:"tax_including_vat"`
	// Energy tax reduction in SEK/kWh when selling to the grid (skattereduktion)
	TaxReduction float64 `mapstructure:"tax_reduction"`
	// Grid benefit in SEK/kWh paid for exported energy (nätnytta)
	GridBenefit float64 `mapstructure:"grid_benefit"`
	// Publish derived buy and sell prices, leave off when the host provides them
	DerivePrices bool   `mapstructure:"derive_prices"`
	RunAt        string `mapstructure:"run_at"`
	// Tibber is used as last fallback when a token is set
	TibberToken  string `mapstructure:"tibber_token"`
	TibberHomeID string `mapstructure:"tibber_home_id"`
}

func (e AppConfigEnergyPrice) GetSource() string {
	return strings.ToLower(valueOr(e.Source, "elprisetjustnu"))
}

type AppConfigLocation struct {
	Timezone *string `mapstructure:"timezone"`
}

func (l AppConfigLocation) GetTimezone() string {
	return valueOr(l.Timezone, "Europe/Stockholm")
}

type AppConfigHotWater struct {
	SolarThreshold  *float64 `mapstructure:"solar_threshold"` // W
	CheapestHours   *int     `mapstructure:"cheapest_hours"`
	MorningFromHour *int     `mapstructure:"morning_from_hour"`
	MorningDeadline *int     `mapstructure:"morning_deadline"`
	CoolingRate     *float64 `mapstructure:"cooling_rate"` // °C per hour
	MorningTarget   *float64 `mapstructure:"morning_target"`
	HeatPerQuarter  *float64 `mapstructure:"heat_per_quarter"`
	MaxQuarters     *int     `mapstructure:"max_quarters"`
	SafetyLow       *float64 `mapstructure:"safety_low"`
	SafetyHigh      *float64 `mapstructure:"safety_high"`
	SafetyMaxZone   *int     `mapstructure:"safety_max_zone"`
}

func (h AppConfigHotWater) Params() hotwater.Params {
	p := hotwater.DefaultParams()
	p.SolarThreshold = valueOr(h.SolarThreshold, p.SolarThreshold)
	p.CheapestHours = valueOr(h.CheapestHours, p.CheapestHours)
	p.MorningFromHour = valueOr(h.MorningFromHour, p.MorningFromHour)
	p.MorningDeadline = valueOr(h.MorningDeadline, p.MorningDeadline)
	p.CoolingRate = valueOr(h.CoolingRate, p.CoolingRate)
	p.MorningTarget = valueOr(h.MorningTarget, p.MorningTarget)
	p.HeatPerQuarter = valueOr(h.HeatPerQuarter, p.HeatPerQuarter)
	p.MaxQuarters = valueOr(h.MaxQuarters, p.MaxQuarters)
	p.SafetyLow = valueOr(h.SafetyLow, p.SafetyLow)
	p.SafetyHigh = valueOr(h.SafetyHigh, p.SafetyHigh)
	p.SafetyMaxZone = valueOr(h.SafetyMaxZone, p.SafetyMaxZone)
	return p
}

type AppConfigCostZones struct {
	HotWaterHorizon *int `mapstructure:"hot_water_horizon"` // quarters
	HeatingHorizon  *int `mapstructure:"heating_horizon"`   // quarters
	// Days of stored prices behind the long term band, 0 disables it
	LongTermDays *int `mapstructure:"long_term_days"`
}

func (c AppConfigCostZones) GetHotWaterHorizon() int {
	return valueOr(c.HotWaterHorizon, 4)
}

func (c AppConfigCostZones) GetHeatingHorizon() int {
	return valueOr(c.HeatingHorizon, 16)
}

func (c AppConfigCostZones) GetLongTermDays() int {
	return valueOr(c.LongTermDays, 30)
}

type AppConfigEvCharging struct {
	BatteryKWh      *float64 `mapstructure:"battery_kwh"`
	Efficiency      *float64 `mapstructure:"efficiency"`
	MaxRateKW       *float64 `mapstructure:"max_rate_kw"`
	MinAmps         *int     `mapstructure:"min_amps"`
	MaxAmps         *int     `mapstructure:"max_amps"`
	Voltage         *float64 `mapstructure:"voltage"`
	Phases          *int     `mapstructure:"phases"`
	MinSOC          *float64 `mapstructure:"min_soc"`
	DeadlineHour    *int     `mapstructure:"deadline_hour"`
	DeadlineMinute  *int     `mapstructure:"deadline_minute"`
	SolarConfidence *float64 `mapstructure:"solar_confidence"`
	BaseloadKW      *float64 `mapstructure:"baseload_kw"`
	// Write charger commands to the entity store only, nothing is sent
	DryRun bool `mapstructure:"dry_run"`
}

func (e AppConfigEvCharging) Params() evcharge.Params {
	p := evcharge.DefaultParams()
	p.BatteryKWh = valueOr(e.BatteryKWh, p.BatteryKWh)
	p.Efficiency = valueOr(e.Efficiency, p.Efficiency)
	p.MaxRateKW = valueOr(e.MaxRateKW, p.MaxRateKW)
	p.MinAmps = valueOr(e.MinAmps, p.MinAmps)
	p.MaxAmps = valueOr(e.MaxAmps, p.MaxAmps)
	p.Voltage = valueOr(e.Voltage, p.Voltage)
	p.Phases = valueOr(e.Phases, p.Phases)
	p.MinSOC = valueOr(e.MinSOC, p.MinSOC)
	p.DeadlineHour = valueOr(e.DeadlineHour, p.DeadlineHour)
	p.DeadlineMinute = valueOr(e.DeadlineMinute, p.DeadlineMinute)
	p.SolarConfidence = valueOr(e.SolarConfidence, p.SolarConfidence)
	p.BaseloadKW = valueOr(e.BaseloadKW, p.BaseloadKW)
	return p
}

type AppConfigSolarOpportunism struct {
	PureThresholdW *float64       `mapstructure:"pure_threshold_w"`
	BlendedMinW    *float64       `mapstructure:"blended_min_w"`
	CheapFactor    *float64       `mapstructure:"cheap_factor"`
	Debounce       *time.Duration `mapstructure:"debounce"`
	MinChange      *time.Duration `mapstructure:"min_change"`
}

func (s AppConfigSolarOpportunism) Params() solar.Params {
	p := solar.DefaultParams()
	p.PureThresholdW = valueOr(s.PureThresholdW, p.PureThresholdW)
	p.BlendedMinW = valueOr(s.BlendedMinW, p.BlendedMinW)
	p.CheapFactor = valueOr(s.CheapFactor, p.CheapFactor)
	p.Debounce = valueOr(s.Debounce, p.Debounce)
	p.MinChange = valueOr(s.MinChange, p.MinChange)
	return p
}

type AppConfigCosts struct {
	Currency     *string        `mapstructure:"currency"`
	PriceScale   *float64       `mapstructure:"price_scale"`   // price units per currency unit, 100 for öre
	SpotScale    *float64       `mapstructure:"spot_scale"`    // spot tick units to price units
	SellFallback *float64       `mapstructure:"sell_fallback"` // sell as share of buy when unknown
	RetryBudget  *time.Duration `mapstructure:"retry_budget"`
}

func (c AppConfigCosts) Params() costs.Params {
	p := costs.DefaultParams()
	p.Currency = valueOr(c.Currency, p.Currency)
	p.PriceScale = valueOr(c.PriceScale, p.PriceScale)
	p.SpotScale = valueOr(c.SpotScale, p.SpotScale)
	p.SellFallback = valueOr(c.SellFallback, p.SellFallback)
	return p
}

func (c AppConfigCosts) GetRetryBudget() time.Duration {
	return valueOr(c.RetryBudget, 10*time.Second)
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(valueOr(l.DbLevel, ""))
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	return valueOr(l.DbMaxEntries, 10000)
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(valueOr(l.ConsoleLevel, ""))
}

type AppConfig struct {
	Api              AppConfigApi
	Database         AppConfigDatabase
	Mqtt             AppConfigMqtt
	EnergyPrice      AppConfigEnergyPrice      `mapstructure:"energy_price"`
	Location         AppConfigLocation         `mapstructure:"location"`
	HotWater         AppConfigHotWater         `mapstructure:"hot_water"`
	CostZones        AppConfigCostZones        `mapstructure:"cost_zones"`
	EvCharging       AppConfigEvCharging       `mapstructure:"ev_charging"`
	SolarOpportunism AppConfigSolarOpportunism `mapstructure:"solar_opportunism"`
	Costs            AppConfigCosts            `mapstructure:"costs"`
	Logging          AppConfigLogging          `mapstructure:"logging"`
}

// Load reads the config file at path, or config/config.yaml when path is
// empty. Environment variables override file values, "ev_charging.max_amps"
// is read from EV_CHARGING_MAX_AMPS.
func Load(path string) (*AppConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return decode(v)
}

// Watch calls onChange with the reloaded config every time the file changes.
// Edits that fail to decode are logged and skipped.
func Watch(path string, logger *slog.Logger, onChange func(*AppConfig)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		c, err := decode(v)
		if err != nil {
			logger.Error("ignoring invalid config", slog.Any("error", err))
			return
		}
		onChange(c)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *AppConfig) validate() error {
	ev := c.EvCharging.Params()
	if ev.MinAmps > ev.MaxAmps {
		return fmt.Errorf("ev_charging: min_amps %d above max_amps %d", ev.MinAmps, ev.MaxAmps)
	}
	if ev.DeadlineHour < 0 || ev.DeadlineHour > 23 || ev.DeadlineMinute < 0 || ev.DeadlineMinute > 59 {
		return fmt.Errorf("ev_charging: invalid deadline %02d:%02d", ev.DeadlineHour, ev.DeadlineMinute)
	}
	if ev.Voltage <= 0 || ev.Phases <= 0 {
		return fmt.Errorf("ev_charging: voltage and phases must be positive")
	}
	switch c.EnergyPrice.GetSource() {
	case "elprisetjustnu", "nordpool":
	default:
		return fmt.Errorf("energy_price: unknown source %q", c.EnergyPrice.GetSource())
	}
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
