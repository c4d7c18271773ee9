// Package config loads the monitor configuration from a YAML file, with
// defaults matching the stock Raspberry Pi UPS HAT setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luki/upsmon/internal/ina219"
	"github.com/luki/upsmon/internal/store"
	"github.com/luki/upsmon/internal/ups"
)

// Config is the full monitor configuration.
type Config struct {
	// Bus is the i2creg bus name, "1" for /dev/i2c-1.
	Bus string `yaml:"bus"`
	// Addr is the 7-bit I2C address of the INA219.
	Addr uint16 `yaml:"addr"`
	// ShuntOhms is the shunt resistor value.
	ShuntOhms float64 `yaml:"shunt_ohms"`
	// CapacityWh is the battery capacity used for the runtime estimate.
	CapacityWh float64 `yaml:"capacity_wh"`
	// IntervalSeconds is the poll/log cadence.
	IntervalSeconds int `yaml:"interval_seconds"`
	// LogPath is the CSV log location.
	LogPath string `yaml:"log_path"`
	// Listen is the exporter's HTTP listen address.
	Listen string `yaml:"listen"`
	// Limits are the advisory alert thresholds.
	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig mirrors ups.Limits in the YAML file.
type LimitsConfig struct {
	MaxVolts float64 `yaml:"max_volts"`
	MaxAmps  float64 `yaml:"max_amps"`
	MaxWatts float64 `yaml:"max_watts"`
}

// UPS converts the YAML limits to the model type.
func (l LimitsConfig) UPS() ups.Limits {
	return ups.Limits{MaxVolts: l.MaxVolts, MaxAmps: l.MaxAmps, MaxWatts: l.MaxWatts}
}

// Default is the configuration used when no file is given.
func Default() Config {
	limits := ups.DefaultLimits()
	return Config{
		Bus:             "1",
		Addr:            0x41,
		ShuntOhms:       0.1,
		CapacityWh:      100,
		IntervalSeconds: 2,
		LogPath:         store.DefaultPath,
		Listen:          ":9219",
		Limits: LimitsConfig{
			MaxVolts: limits.MaxVolts,
			MaxAmps:  limits.MaxAmps,
			MaxWatts: limits.MaxWatts,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the driver or the poll loop cannot work with.
func (c Config) Validate() error {
	if c.ShuntOhms <= 0 {
		return fmt.Errorf("config: shunt_ohms must be positive, got %g", c.ShuntOhms)
	}
	if c.CapacityWh <= 0 {
		return fmt.Errorf("config: capacity_wh must be positive, got %g", c.CapacityWh)
	}
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("config: interval_seconds must be at least 1, got %d", c.IntervalSeconds)
	}
	if c.Addr > 0x7F {
		return fmt.Errorf("config: addr %#x outside the 7-bit range", c.Addr)
	}
	if c.Limits.MaxVolts <= 0 || c.Limits.MaxAmps <= 0 || c.Limits.MaxWatts <= 0 {
		return fmt.Errorf("config: limits must be positive, got %+v", c.Limits)
	}
	return nil
}

// Interval returns the poll cadence as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Sensor returns the driver configuration.
func (c Config) Sensor() ina219.Config {
	return ina219.Config{Bus: c.Bus, Addr: c.Addr, ShuntOhms: c.ShuntOhms}
}
