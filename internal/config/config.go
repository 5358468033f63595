package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultPath is where the binaries look for their configuration.
const DefaultPath = "forecaster_config.txt"

// Config holds all application configuration values.
type Config struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level

	// MQTT
	MQTTBroker             string `validate:"required"`
	MQTTClientIDForecaster string `validate:"required"`
	MQTTClientIDConsole    string `validate:"required"`
	MQTTClientIDWeb        string `validate:"required"`
	MQTTClientIDDisplay    string `validate:"required"`

	// Topics
	TopicForecast string `validate:"required"`
	TopicPressure string `validate:"required"`
	TopicStatus   string `validate:"required"`

	// BME280 hardware. An empty bus name picks the first I2C bus.
	BME280I2CBus   string
	BME280I2CAddr  uint16 `validate:"oneof=118 119"`
	BME280CtrlMeas byte
	BME280Config   byte
	BME280Simulate bool

	// Cycle timing
	CyclePeriod time.Duration `validate:"gt=0"`
	InnerPeriod time.Duration `validate:"gt=0"`
	SettleDelay time.Duration `validate:"gt=0"`
	BurstLength int           `validate:"min=1,max=64"`

	// History and trend
	HistoryRetention time.Duration `validate:"gt=0"`
	TrendMinAge      time.Duration `validate:"gt=0"`
	HistoryDBPath    string        `validate:"required"`
	HistoryKey       string        `validate:"required"`

	// Sensor link circuit breaker
	BreakerMaxFailures uint32        `validate:"min=1"`
	BreakerTimeout     time.Duration `validate:"gt=0"`

	// Web Server
	WebServerPort int `validate:"min=1,max=65535"`

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval time.Duration `validate:"gt=0"`

	// Telegram notifications, disabled without a token.
	TelegramToken  string
	TelegramChatID int64 `validate:"required_with=TelegramToken"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		AppEnv:   "dev",
		LogLevel: slog.LevelInfo,

		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDForecaster: "barometer-forecaster",
		MQTTClientIDConsole:    "barometer-console",
		MQTTClientIDWeb:        "barometer-web",
		MQTTClientIDDisplay:    "barometer-display",

		TopicForecast: "barometer/forecast",
		TopicPressure: "barometer/pressure",
		TopicStatus:   "barometer/status",

		BME280I2CAddr:  0x76,
		BME280CtrlMeas: 0x25,
		BME280Config:   0x00,

		CyclePeriod: 70 * time.Second,
		InnerPeriod: 10 * time.Second,
		SettleDelay: 100 * time.Millisecond,
		BurstLength: 4,

		HistoryRetention: 2 * time.Hour,
		TrendMinAge:      30 * time.Minute,
		HistoryDBPath:    "data/forecaster.db",
		HistoryKey:       "pressure_history",

		BreakerMaxFailures: 3,
		BreakerTimeout:     5 * time.Minute,

		WebServerPort: 8080,

		DisplayUpdateInterval: 2 * time.Second,
	}
}

// Package-level singleton; InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the KEY=VALUE configuration file on top of Default. Variables
// set in the process environment win over the file.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	for key := range values {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	return FromMap(values)
}

// FromMap applies values onto Default and validates the result.
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setValue sets a config field by key name.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "APP_ENV":
		c.AppEnv = value
	case "LOG_LEVEL":
		c.LogLevel, err = parseLogLevel(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FORECASTER":
		c.MQTTClientIDForecaster = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_FORECAST":
		c.TopicForecast = value
	case "TOPIC_PRESSURE":
		c.TopicPressure = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// BME280
	case "BME280_I2C_BUS":
		c.BME280I2CBus = value
	case "BME280_I2C_ADDR":
		var addr uint64
		if addr, err = strconv.ParseUint(value, 0, 16); err == nil {
			c.BME280I2CAddr = uint16(addr)
		}
	case "BME280_CTRL_MEAS":
		c.BME280CtrlMeas, err = parseByte(value)
	case "BME280_CONFIG":
		c.BME280Config, err = parseByte(value)
	case "BME280_SIMULATE":
		c.BME280Simulate, err = strconv.ParseBool(value)

	// Timing
	case "CYCLE_PERIOD":
		c.CyclePeriod, err = time.ParseDuration(value)
	case "INNER_PERIOD":
		c.InnerPeriod, err = time.ParseDuration(value)
	case "SETTLE_DELAY":
		c.SettleDelay, err = time.ParseDuration(value)
	case "BURST_LENGTH":
		c.BurstLength, err = strconv.Atoi(value)

	// History
	case "HISTORY_RETENTION":
		c.HistoryRetention, err = time.ParseDuration(value)
	case "TREND_MIN_AGE":
		c.TrendMinAge, err = time.ParseDuration(value)
	case "HISTORY_DB_PATH":
		c.HistoryDBPath = value
	case "HISTORY_KEY":
		c.HistoryKey = value

	// Breaker
	case "BREAKER_MAX_FAILURES":
		var n uint64
		if n, err = strconv.ParseUint(value, 10, 32); err == nil {
			c.BreakerMaxFailures = uint32(n)
		}
	case "BREAKER_TIMEOUT":
		c.BreakerTimeout, err = time.ParseDuration(value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = strconv.Atoi(value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = time.ParseDuration(value)

	// Telegram
	case "TELEGRAM_TOKEN":
		c.TelegramToken = value
	case "TELEGRAM_CHAT_ID":
		c.TelegramChatID, err = strconv.ParseInt(value, 10, 64)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	return byte(v), err
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("allowed: debug, info, warn, error")
	}
}

var validate = validator.New()

// validate checks field constraints and the relations between them.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return err
	}

	if osrsT := c.BME280CtrlMeas >> 5; osrsT == 0 {
		return fmt.Errorf("BME280_CTRL_MEAS 0x%02X skips temperature", c.BME280CtrlMeas)
	}
	if osrsP := (c.BME280CtrlMeas >> 2) & 0x07; osrsP == 0 {
		return fmt.Errorf("BME280_CTRL_MEAS 0x%02X skips pressure", c.BME280CtrlMeas)
	}
	if mode := c.BME280CtrlMeas & 0x03; mode != 0x01 && mode != 0x02 {
		return fmt.Errorf("BME280_CTRL_MEAS 0x%02X is not forced mode", c.BME280CtrlMeas)
	}

	burst := c.InnerPeriod*time.Duration(c.BurstLength) + c.SettleDelay
	if c.CyclePeriod <= burst {
		return fmt.Errorf("CYCLE_PERIOD %v must exceed INNER_PERIOD × BURST_LENGTH + SETTLE_DELAY (%v)", c.CyclePeriod, burst)
	}
	if c.SettleDelay >= c.InnerPeriod {
		return fmt.Errorf("SETTLE_DELAY %v must be shorter than INNER_PERIOD %v", c.SettleDelay, c.InnerPeriod)
	}
	if c.TrendMinAge >= c.HistoryRetention {
		return fmt.Errorf("TREND_MIN_AGE %v must be shorter than HISTORY_RETENTION %v", c.TrendMinAge, c.HistoryRetention)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
