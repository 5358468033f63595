package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `# barometer forecaster
APP_ENV=prod
LOG_LEVEL=debug
MQTT_BROKER=tcp://broker:1883
TOPIC_FORECAST=home/forecast
BME280_I2C_BUS=1
BME280_I2C_ADDR=0x77
BME280_CTRL_MEAS=0x49
BME280_SIMULATE=true
CYCLE_PERIOD=2m
INNER_PERIOD=15s
SETTLE_DELAY=50ms
BURST_LENGTH=6
TELEGRAM_TOKEN=123:abc
TELEGRAM_CHAT_ID=-1001
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecaster_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AppEnv != "prod" || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("env/level = %s/%v", cfg.AppEnv, cfg.LogLevel)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" || cfg.TopicForecast != "home/forecast" {
		t.Errorf("mqtt = %s %s", cfg.MQTTBroker, cfg.TopicForecast)
	}
	if cfg.BME280I2CBus != "1" || cfg.BME280I2CAddr != 0x77 || cfg.BME280CtrlMeas != 0x49 || !cfg.BME280Simulate {
		t.Errorf("bme280 = %+v", cfg)
	}
	if cfg.CyclePeriod != 2*time.Minute || cfg.InnerPeriod != 15*time.Second || cfg.SettleDelay != 50*time.Millisecond || cfg.BurstLength != 6 {
		t.Errorf("timing = %v %v %v %d", cfg.CyclePeriod, cfg.InnerPeriod, cfg.SettleDelay, cfg.BurstLength)
	}
	if cfg.TelegramChatID != -1001 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID)
	}

	// Untouched keys keep their defaults.
	def := Default()
	if cfg.TopicStatus != def.TopicStatus || cfg.HistoryRetention != def.HistoryRetention {
		t.Errorf("defaults lost: %s %v", cfg.TopicStatus, cfg.HistoryRetention)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://override:1883")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTTBroker != "tcp://override:1883" {
		t.Errorf("MQTTBroker = %s", cfg.MQTTBroker)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr string
	}{
		{"unknown key", map[string]string{"ANEMOMETER_PIN": "x"}, "unknown config key"},
		{"bad duration", map[string]string{"CYCLE_PERIOD": "soon"}, "CYCLE_PERIOD"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad env", map[string]string{"APP_ENV": "staging"}, "AppEnv"},
		{"bad address", map[string]string{"BME280_I2C_ADDR": "0x40"}, "BME280I2CAddr"},
		{"empty broker", map[string]string{"MQTT_BROKER": ""}, "MQTTBroker"},
		{"zero burst", map[string]string{"BURST_LENGTH": "0"}, "BurstLength"},
		{"ctrl skips pressure", map[string]string{"BME280_CTRL_MEAS": "0xE1"}, "skips pressure"},
		{"ctrl skips temperature", map[string]string{"BME280_CTRL_MEAS": "0x05"}, "skips temperature"},
		{"ctrl sleep mode", map[string]string{"BME280_CTRL_MEAS": "0x24"}, "forced mode"},
		{"cycle too short", map[string]string{"CYCLE_PERIOD": "40s"}, "must exceed"},
		{"settle too long", map[string]string{"SETTLE_DELAY": "10s"}, "SETTLE_DELAY"},
		{"trend age beyond retention", map[string]string{"TREND_MIN_AGE": "3h"}, "TREND_MIN_AGE"},
		{"telegram without chat", map[string]string{"TELEGRAM_TOKEN": "t"}, "TelegramChatID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.values)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
