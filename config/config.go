package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BarPeriod selects the aggregation granularity of the bar builder.
type BarPeriod string

const (
	PeriodMinute BarPeriod = "minute"
	PeriodDay    BarPeriod = "day"
)

// InstrumentConfig carries the static contract metadata for one traded
// instrument. Multiplier is the contract size the sizer divides by;
// TickSize is the minimum price increment.
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol"`
	Multiplier float64 `yaml:"multiplier"`
	TickSize   float64 `yaml:"tickSize"`
}

// EngineConfig holds all tunable parameters of the decision engine.
type EngineConfig struct {
	// Indicator parameters
	BufferSize         int `yaml:"bufferSize"`         // rolling window depth, default 30
	EntryChannelLength int `yaml:"entryChannelLength"` // breakout channel, default 20
	ExitChannelLength  int `yaml:"exitChannelLength"`  // stop channel, default 10
	ATRLength          int `yaml:"atrLength"`          // ATR lookback, default 20

	// Sizing parameters
	RiskFraction   float64 `yaml:"riskFraction"`   // share of equity risked per unit, default 0.0035
	FallbackEquity float64 `yaml:"fallbackEquity"` // notional equity when balance unknown, default 1,000,000

	// Order placement parameters
	EntrySlippageTicks float64 `yaml:"entrySlippageTicks"` // offset added to the trigger price, default 5
	CloseSlippageTicks float64 `yaml:"closeSlippageTicks"` // aggressive offset for liquidation, default 10

	// Account protection
	MaxDrawdownFraction      float64 `yaml:"maxDrawdownFraction"` // close-all when balance <= peak*fraction
	SuspendEntriesOnDrawdown bool    `yaml:"suspendEntriesOnDrawdown"`

	// Bar aggregation
	Period BarPeriod `yaml:"period"`

	// Historical warm-up
	WarmupDays int `yaml:"warmupDays"`

	Instruments []InstrumentConfig `yaml:"instruments"`
}

// Default returns the parameter set of the reference configuration.
func Default() EngineConfig {
	return EngineConfig{
		BufferSize:          30,
		EntryChannelLength:  20,
		ExitChannelLength:   10,
		ATRLength:           20,
		RiskFraction:        0.0035,
		FallbackEquity:      1_000_000,
		EntrySlippageTicks:  5,
		CloseSlippageTicks:  10,
		MaxDrawdownFraction: 0.01,
		Period:              PeriodMinute,
		WarmupDays:          3,
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (EngineConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that all numeric fields are within sensible bounds.
// It returns the first encountered error, allowing the caller to surface a
// clear configuration problem before any trading starts.
func (c *EngineConfig) Validate() error {
	if c.BufferSize <= 0 {
		return errors.New("BufferSize must be positive")
	}
	if c.EntryChannelLength <= 0 || c.EntryChannelLength >= c.BufferSize {
		return fmt.Errorf("EntryChannelLength (%d) must be positive and smaller than BufferSize (%d)", c.EntryChannelLength, c.BufferSize)
	}
	if c.ExitChannelLength <= 0 || c.ExitChannelLength > c.EntryChannelLength {
		return fmt.Errorf("ExitChannelLength (%d) must be positive and not exceed EntryChannelLength (%d)", c.ExitChannelLength, c.EntryChannelLength)
	}
	if c.ATRLength <= 0 || c.ATRLength >= c.BufferSize {
		return fmt.Errorf("ATRLength (%d) must be positive and smaller than BufferSize (%d)", c.ATRLength, c.BufferSize)
	}
	if c.RiskFraction <= 0 || c.RiskFraction > 0.05 {
		return fmt.Errorf("RiskFraction (%f) must be >0 and <=0.05", c.RiskFraction)
	}
	if c.FallbackEquity <= 0 {
		return errors.New("FallbackEquity must be positive")
	}
	if c.EntrySlippageTicks < 0 {
		return errors.New("EntrySlippageTicks cannot be negative")
	}
	if c.CloseSlippageTicks < 0 {
		return errors.New("CloseSlippageTicks cannot be negative")
	}
	if c.MaxDrawdownFraction <= 0 || c.MaxDrawdownFraction >= 1 {
		return fmt.Errorf("MaxDrawdownFraction (%f) must be between 0 and 1", c.MaxDrawdownFraction)
	}
	if c.Period != PeriodMinute && c.Period != PeriodDay {
		return fmt.Errorf("Period (%q) must be %q or %q", c.Period, PeriodMinute, PeriodDay)
	}
	if c.WarmupDays < 0 {
		return errors.New("WarmupDays cannot be negative")
	}
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return errors.New("instrument with empty symbol")
		}
		if inst.Multiplier <= 0 {
			return fmt.Errorf("instrument %s: Multiplier must be positive", inst.Symbol)
		}
		if inst.TickSize <= 0 {
			return fmt.Errorf("instrument %s: TickSize must be positive", inst.Symbol)
		}
	}
	return nil
}

// Start truncates a tick timestamp to the start of its bar period.
func (p BarPeriod) Start(ts time.Time) time.Time {
	if p == PeriodDay {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	}
	return ts.Truncate(time.Minute)
}
