package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bus != "1" {
		t.Errorf("bus: got %q, want \"1\"", cfg.Bus)
	}
	if cfg.Addr != 0x41 {
		t.Errorf("addr: got %#x, want 0x41", cfg.Addr)
	}
	if cfg.ShuntOhms != 0.1 {
		t.Errorf("shunt: got %g, want 0.1", cfg.ShuntOhms)
	}
	if cfg.Interval() != 2*time.Second {
		t.Errorf("interval: got %v, want 2s", cfg.Interval())
	}
	limits := cfg.Limits.UPS()
	if limits.MaxVolts != 15.0 || limits.MaxAmps != 2.0 || limits.MaxWatts != 10.0 {
		t.Errorf("limits: got %+v", limits)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upsmon.yaml")
	data := `
bus: "3"
capacity_wh: 74
interval_seconds: 5
limits:
  max_volts: 13.5
  max_amps: 2.0
  max_watts: 10.0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bus != "3" {
		t.Errorf("bus: got %q, want \"3\"", cfg.Bus)
	}
	if cfg.CapacityWh != 74 {
		t.Errorf("capacity: got %g, want 74", cfg.CapacityWh)
	}
	if cfg.Interval() != 5*time.Second {
		t.Errorf("interval: got %v, want 5s", cfg.Interval())
	}
	if cfg.Limits.MaxVolts != 13.5 {
		t.Errorf("max volts: got %g, want 13.5", cfg.Limits.MaxVolts)
	}
	// Untouched keys keep their defaults.
	if cfg.Addr != 0x41 {
		t.Errorf("addr: got %#x, want default 0x41", cfg.Addr)
	}
	if cfg.LogPath != "ina219_data_log.csv" {
		t.Errorf("log path: got %q, want default", cfg.LogPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero shunt", func(c *Config) { c.ShuntOhms = 0 }, "shunt_ohms"},
		{"zero capacity", func(c *Config) { c.CapacityWh = 0 }, "capacity_wh"},
		{"zero interval", func(c *Config) { c.IntervalSeconds = 0 }, "interval_seconds"},
		{"addr out of range", func(c *Config) { c.Addr = 0x80 }, "7-bit"},
		{"negative limit", func(c *Config) { c.Limits.MaxWatts = -1 }, "limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
