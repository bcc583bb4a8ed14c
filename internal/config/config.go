// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	System    SystemConfig           `yaml:"system"`
	Gateway   GatewayConfig          `yaml:"gateway"`
	Venues    map[string]VenueConfig `yaml:"venues"`
	Rules     RulesConfig            `yaml:"rules"`
	Windows   WindowsConfig          `yaml:"windows"`
	Files     FilesConfig            `yaml:"files"`
	Earnings  EarningsConfig         `yaml:"earnings"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// GatewayConfig contains brokerage gateway connection settings
type GatewayConfig struct {
	URL                  string `yaml:"url"`
	Port                 int    `yaml:"port"`
	RateLimit            int    `yaml:"rate_limit"`             // requests per second
	RateBurst            int    `yaml:"rate_burst"`             // burst allowance
	ReconnectDelaySec    int    `yaml:"reconnect_delay_sec"`    // delay between reconnect attempts
	PingIntervalSec      int    `yaml:"ping_interval_sec"`      // heartbeat interval
	PongWaitSec          int    `yaml:"pong_wait_sec"`          // pong deadline
	OrderRetryAttempts   int    `yaml:"order_retry_attempts"`   // place/cancel retries
	OrderRetryBaseMLS    int    `yaml:"order_retry_base_mls"`   // base backoff in ms
	ContractDaysToOpen   int    `yaml:"contract_days_to_open"`  // stale-metadata guard, days
	StartupGraceSec      int    `yaml:"startup_grace_sec"`      // open-position reconcile delay
	EventChannelCapacity int    `yaml:"event_channel_capacity"` // gateway event buffer
}

// VenueConfig describes one selectable market venue
type VenueConfig struct {
	TimeZone     string  `yaml:"timezone"`
	ExchangeRate float64 `yaml:"exchange_rate"` // base-currency units per USD of PnL
	ClientID     int     `yaml:"client_id"`
	HasPause     bool    `yaml:"has_pause"` // midday trading pause
	PlanFile     string  `yaml:"plan_file"`
	OutputPrefix string  `yaml:"output_prefix"`
}

// RulesConfig carries the fixed rule thresholds, all fractions of price or
// portfolio unless noted
type RulesConfig struct {
	MaxSpread          float64 `yaml:"max_spread"`           // |ask-bid|/ask ceiling
	SellHalfReversal   float64 `yaml:"sell_half_reversal"`   // arm threshold above entry
	SellFullReversal   float64 `yaml:"sell_full_reversal"`   // breakeven threshold above entry
	BadClose           float64 `yaml:"bad_close"`            // (last-low)/(high-low) floor
	MaxDailyLoss       float64 `yaml:"max_daily_loss"`       // negative fraction of portfolio
	MinPositionSize    float64 `yaml:"min_position_size"`    // min notional fraction of portfolio
	PnLPrintThreshold  float64 `yaml:"pnl_print_threshold"`  // percentage points
	SentinelEntryPrice float64 `yaml:"sentinel_entry_price"` // keep-alive row marker
	SentinelStopPrice  float64 `yaml:"sentinel_stop_price"`
}

// WindowsConfig parameterizes the time gates around session open and close.
// Source revisions disagreed on several of these, so they are configuration
// rather than constants.
type WindowsConfig struct {
	BuyBlockMin        int `yaml:"buy_block_min"`        // no new entries inside close-N for sell-on-close rows
	SMACancelMin       int `yaml:"sma_cancel_min"`       // sell-on-close-via-SMA evaluation window
	BadCloseMin        int `yaml:"bad_close_min"`        // bad-close evaluation window
	PlanSyncStopMin    int `yaml:"plan_sync_stop_min"`   // plan reloads stop inside close-N
	ShutdownGraceMin   int `yaml:"shutdown_grace_min"`   // process exits at close+N
	CloseLegLeadMin    int `yaml:"close_leg_lead_min"`   // close leg activates at close-N
	OpenCancelLeadMin  int `yaml:"open_cancel_lead_min"` // stale-order cancel inside open-N
	EntryTTLMin        int `yaml:"entry_ttl_min"`        // entry order good-till now+N
	PlanSyncSec        int `yaml:"plan_sync_sec"`        // plan reload debounce
	GapFadeSec         int `yaml:"gap_fade_sec"`         // open-position observation window
	SpreadThrottleSec  int `yaml:"spread_throttle_sec"`  // first-minute loop message throttle
	ReversalConfirmSec int `yaml:"reversal_confirm_sec"` // reversal rules ignore the first N seconds
}

// FilesConfig contains file locations
type FilesConfig struct {
	PlanDir   string `yaml:"plan_dir"`
	OutputDir string `yaml:"output_dir"`
}

// EarningsConfig contains the advisory earnings-lookup settings
type EarningsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	RequestDelayMLS int    `yaml:"request_delay_mls"`
	PoolWorkers     int    `yaml:"pool_workers"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateVenues(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateRulesConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateWindowsConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateGatewayConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateVenues() error {
	if len(c.Venues) == 0 {
		return ValidationError{
			Field:   "venues",
			Message: "at least one venue must be configured",
		}
	}

	for code, v := range c.Venues {
		if v.TimeZone == "" {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.timezone", code),
				Message: "timezone is required",
			}
		}
		if v.ExchangeRate <= 0 {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.exchange_rate", code),
				Value:   v.ExchangeRate,
				Message: "exchange rate must be positive",
			}
		}
		if v.PlanFile == "" {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.plan_file", code),
				Message: "plan file name is required",
			}
		}
	}

	return nil
}

func (c *Config) validateRulesConfig() error {
	if c.Rules.MaxSpread <= 0 || c.Rules.MaxSpread >= 1 {
		return ValidationError{
			Field:   "rules.max_spread",
			Value:   c.Rules.MaxSpread,
			Message: "must be a fraction in (0, 1)",
		}
	}
	if c.Rules.MaxDailyLoss >= 0 {
		return ValidationError{
			Field:   "rules.max_daily_loss",
			Value:   c.Rules.MaxDailyLoss,
			Message: "must be negative",
		}
	}
	if c.Rules.SellHalfReversal <= 0 || c.Rules.SellFullReversal <= c.Rules.SellHalfReversal {
		return ValidationError{
			Field:   "rules.sell_full_reversal",
			Value:   c.Rules.SellFullReversal,
			Message: "full-reversal threshold must exceed the half-reversal threshold",
		}
	}
	return nil
}

func (c *Config) validateWindowsConfig() error {
	if c.Windows.ShutdownGraceMin <= 0 {
		return ValidationError{
			Field:   "windows.shutdown_grace_min",
			Value:   c.Windows.ShutdownGraceMin,
			Message: "must be positive",
		}
	}
	if c.Windows.PlanSyncSec <= 0 {
		return ValidationError{
			Field:   "windows.plan_sync_sec",
			Value:   c.Windows.PlanSyncSec,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validateGatewayConfig() error {
	if c.Gateway.RateLimit <= 0 {
		return ValidationError{
			Field:   "gateway.rate_limit",
			Value:   c.Gateway.RateLimit,
			Message: "must be positive",
		}
	}
	return nil
}

// Venue returns the configuration for the selected venue code.
func (c *Config) Venue(code string) (*VenueConfig, error) {
	v, exists := c.Venues[strings.ToUpper(code)]
	if !exists {
		return nil, fmt.Errorf("unknown venue: %s", code)
	}
	return &v, nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the built-in defaults; LoadConfig overlays the file
// on top of these, and tests use them directly.
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Gateway: GatewayConfig{
			URL:                  "ws://127.0.0.1",
			Port:                 7496,
			RateLimit:            25,
			RateBurst:            30,
			ReconnectDelaySec:    5,
			PingIntervalSec:      30,
			PongWaitSec:          60,
			OrderRetryAttempts:   3,
			OrderRetryBaseMLS:    200,
			ContractDaysToOpen:   10,
			StartupGraceSec:      60,
			EventChannelCapacity: 1024,
		},
		Venues: map[string]VenueConfig{
			"NY": {
				TimeZone:     "America/New_York",
				ExchangeRate: 1.0,
				ClientID:     22,
				HasPause:     false,
				PlanFile:     "trading_plan_us.xlsx",
				OutputPrefix: "us",
			},
			"JP": {
				TimeZone:     "Japan",
				ExchangeRate: 150.0,
				ClientID:     11,
				HasPause:     true,
				PlanFile:     "trading_plan_jp.xlsx",
				OutputPrefix: "jp",
			},
			"DE": {
				TimeZone:     "Europe/Berlin",
				ExchangeRate: 0.91,
				ClientID:     33,
				HasPause:     false,
				PlanFile:     "trading_plan_de.xlsx",
				OutputPrefix: "de",
			},
		},
		Rules: RulesConfig{
			MaxSpread:          0.0125,
			SellHalfReversal:   0.06,
			SellFullReversal:   0.10,
			BadClose:           0.15,
			MaxDailyLoss:       -0.05,
			MinPositionSize:    0.001,
			PnLPrintThreshold:  0.1,
			SentinelEntryPrice: 9,
			SentinelStopPrice:  11,
		},
		Windows: WindowsConfig{
			BuyBlockMin:        15,
			SMACancelMin:       8,
			BadCloseMin:        2,
			PlanSyncStopMin:    5,
			ShutdownGraceMin:   3,
			CloseLegLeadMin:    5,
			OpenCancelLeadMin:  15,
			EntryTTLMin:        2,
			PlanSyncSec:        15,
			GapFadeSec:         4,
			SpreadThrottleSec:  10,
			ReversalConfirmSec: 150,
		},
		Files: FilesConfig{
			PlanDir:   ".",
			OutputDir: ".",
		},
		Earnings: EarningsConfig{
			Enabled:         false,
			BaseURL:         "https://www.earningswhispers.com/stocks",
			RequestDelayMLS: 500,
			PoolWorkers:     2,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: false,
		},
	}
}
