package ups

import (
	"errors"
	"math"
	"testing"

	"github.com/luki/upsmon/internal/hostinfo"
	"github.com/luki/upsmon/internal/ina219"
)

func TestBatteryPercent(t *testing.T) {
	tests := []struct {
		volts float64
		want  float64
	}{
		{12.6, 100},
		{9.0, 0},
		{6.0, 0},    // clamp below range
		{15.0, 100}, // clamp above range
		{10.8, 50},
	}
	for _, tt := range tests {
		got := BatteryPercent(tt.volts)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BatteryPercent(%g): got %g, want %g", tt.volts, got, tt.want)
		}
	}
}

func TestRemainingMinutes(t *testing.T) {
	min, ok := RemainingMinutes(100, 10)
	if !ok || min != 600 {
		t.Errorf("100 Wh at 10 W: got (%g, %v), want (600, true)", min, ok)
	}

	min, ok = RemainingMinutes(100, 0.001)
	if !ok || min != 10000 {
		t.Errorf("near-zero draw: got (%g, %v), want capped (10000, true)", min, ok)
	}

	if _, ok := RemainingMinutes(100, 0); ok {
		t.Error("zero draw: expected no estimate")
	}
	if _, ok := RemainingMinutes(100, -2.5); ok {
		t.Error("charging (negative draw): expected no estimate")
	}
}

func TestLimitsCheck(t *testing.T) {
	l := DefaultLimits()

	tests := []struct {
		name string
		r    Reading
		want Violations
	}{
		{
			name: "voltage only",
			r:    Reading{BusVolts: 15.1, CurrentAmps: 1.0, PowerWatts: 5.0},
			want: Violations{Voltage: true},
		},
		{
			name: "current only",
			r:    Reading{BusVolts: 12.0, CurrentAmps: 2.5, PowerWatts: 5.0},
			want: Violations{Current: true},
		},
		{
			name: "all three at once",
			r:    Reading{BusVolts: 16.0, CurrentAmps: 3.0, PowerWatts: 12.0},
			want: Violations{Voltage: true, Current: true, Power: true},
		},
		{
			name: "all within limits",
			r:    Reading{BusVolts: 12.0, CurrentAmps: 0.5, PowerWatts: 6.0},
			want: Violations{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Check(tt.r)
			if got != tt.want {
				t.Errorf("Check: got %+v, want %+v", got, tt.want)
			}
			if got.Any() != (tt.want != Violations{}) {
				t.Errorf("Any: got %v", got.Any())
			}
		})
	}
}

type fakeDevice struct {
	m   ina219.Measurement
	err error
}

func (f *fakeDevice) Read() (ina219.Measurement, error) {
	return f.m, f.err
}

func TestSamplerBuildsReading(t *testing.T) {
	dev := &fakeDevice{m: ina219.Measurement{
		ShuntMillivolts:  10,
		BusVolts:         12.6,
		CurrentMilliamps: 500,
		PowerWatts:       5,
	}}
	telemetry := func() hostinfo.Stats {
		return hostinfo.Stats{CPUTemp: 48.5, HasCPUTemp: true, CPUPercent: 12.5, MemPercent: 40.0}
	}

	s := NewSampler(dev, 100, telemetry)
	r, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	if r.Time.IsZero() {
		t.Error("expected a timestamp")
	}
	if r.CurrentAmps != 0.5 {
		t.Errorf("current: got %g A, want 0.5", r.CurrentAmps)
	}
	if r.Percent != 100 {
		t.Errorf("percent: got %g, want 100", r.Percent)
	}
	if !r.HasRemaining || r.RemainingMinutes != 1200 {
		t.Errorf("remaining: got (%g, %v), want (1200, true)", r.RemainingMinutes, r.HasRemaining)
	}
	if !r.HasCPUTemp || r.CPUTemp != 48.5 {
		t.Errorf("cpu temp: got (%g, %v)", r.CPUTemp, r.HasCPUTemp)
	}
}

func TestSamplerPropagatesTransportFailure(t *testing.T) {
	dev := &fakeDevice{err: errors.New("i2c: remote I/O error")}
	s := NewSampler(dev, 100, func() hostinfo.Stats { return hostinfo.Stats{} })

	if _, err := s.Sample(); err == nil {
		t.Fatal("expected transport failure to propagate")
	}
}

func TestSamplerIdleDrawHasNoEstimate(t *testing.T) {
	dev := &fakeDevice{m: ina219.Measurement{BusVolts: 12.0}}
	s := NewSampler(dev, 100, func() hostinfo.Stats { return hostinfo.Stats{} })

	r, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if r.HasRemaining {
		t.Errorf("zero draw: got estimate %g, want none", r.RemainingMinutes)
	}
}
