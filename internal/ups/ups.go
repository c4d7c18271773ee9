// Package ups turns raw INA219 measurements into UPS state: a voltage-based
// battery percentage, a remaining-runtime estimate, and limit checks.
package ups

import (
	"sync"
	"time"

	"github.com/luki/upsmon/internal/hostinfo"
	"github.com/luki/upsmon/internal/ina219"
)

// Pack voltage window for the percentage estimate: 9.0 V empty, 12.6 V full
// (a 3S li-ion pack). This is a deliberate voltage-only heuristic, not a
// coulomb-counting fuel gauge; under load the reading sags and the estimate
// with it.
const (
	emptyVolts = 9.0
	fullVolts  = 12.6
)

// maxRemainingMinutes caps the runtime estimate. Near-zero draw would
// otherwise report millions of minutes.
const maxRemainingMinutes = 10000

// Reading is one decoded poll cycle combined with host telemetry. It is a
// pure value: built fresh each cycle, never mutated after construction.
type Reading struct {
	Time            time.Time
	BusVolts        float64
	ShuntMillivolts float64
	CurrentAmps     float64
	PowerWatts      float64
	Percent         float64

	CPUTemp    float64
	HasCPUTemp bool
	CPUPercent float64
	MemPercent float64

	RemainingMinutes float64
	HasRemaining     bool
}

// BatteryPercent maps bus voltage linearly onto the pack window, clamped to
// [0, 100].
func BatteryPercent(busVolts float64) float64 {
	percent := (busVolts - emptyVolts) / (fullVolts - emptyVolts) * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// RemainingMinutes estimates runtime from instantaneous draw, capped at
// maxRemainingMinutes. Zero or negative draw (idle, or charging) yields no
// estimate at all rather than zero or infinity.
//
// An earlier revision only estimated while the bus voltage indicated the
// load had fallen back to battery, and had no cap; estimating from draw
// alone with a cap superseded it.
func RemainingMinutes(capacityWh, powerWatts float64) (float64, bool) {
	if powerWatts <= 0 {
		return 0, false
	}
	minutes := capacityWh / powerWatts * 60
	if minutes > maxRemainingMinutes {
		minutes = maxRemainingMinutes
	}
	return minutes, true
}

// Limits are the advisory alert thresholds. Exceedances are reported, never
// acted on; readings continue unaltered.
type Limits struct {
	MaxVolts float64
	MaxAmps  float64
	MaxWatts float64
}

// DefaultLimits matches the stock UPS HAT operating envelope.
func DefaultLimits() Limits {
	return Limits{MaxVolts: 15.0, MaxAmps: 2.0, MaxWatts: 10.0}
}

// Violations flags each exceeded limit independently; all three can fire on
// the same reading.
type Violations struct {
	Voltage bool
	Current bool
	Power   bool
}

// Any reports whether at least one limit was exceeded.
func (v Violations) Any() bool {
	return v.Voltage || v.Current || v.Power
}

// Check compares a reading against the limits.
func (l Limits) Check(r Reading) Violations {
	return Violations{
		Voltage: r.BusVolts > l.MaxVolts,
		Current: r.CurrentAmps > l.MaxAmps,
		Power:   r.PowerWatts > l.MaxWatts,
	}
}

// Device is the sensor a Sampler polls. *ina219.Dev satisfies it.
type Device interface {
	Read() (ina219.Measurement, error)
}

// Telemetry supplies host stats for a cycle.
type Telemetry func() hostinfo.Stats

// Sampler runs read-decode-derive cycles against one device. The mutex
// serializes device access: the INA219 has no notion of overlapping
// transactions, and both the live TUI and the metrics exporter may poll.
type Sampler struct {
	mu         sync.Mutex
	dev        Device
	telemetry  Telemetry
	capacityWh float64
}

// NewSampler builds a sampler for the device and battery capacity. A nil
// telemetry function defaults to hostinfo.Read.
func NewSampler(dev Device, capacityWh float64, telemetry Telemetry) *Sampler {
	if telemetry == nil {
		telemetry = hostinfo.Read
	}
	return &Sampler{dev: dev, telemetry: telemetry, capacityWh: capacityWh}
}

// Sample performs one poll cycle. A transport failure aborts the cycle and
// propagates; nothing is retried here — retry policy belongs to the caller.
func (s *Sampler) Sample() (Reading, error) {
	s.mu.Lock()
	m, err := s.dev.Read()
	s.mu.Unlock()
	if err != nil {
		return Reading{}, err
	}

	stats := s.telemetry()

	r := Reading{
		Time:            time.Now(),
		BusVolts:        m.BusVolts,
		ShuntMillivolts: m.ShuntMillivolts,
		CurrentAmps:     m.CurrentMilliamps / 1000,
		PowerWatts:      m.PowerWatts,
		Percent:         BatteryPercent(m.BusVolts),
		CPUTemp:         stats.CPUTemp,
		HasCPUTemp:      stats.HasCPUTemp,
		CPUPercent:      stats.CPUPercent,
		MemPercent:      stats.MemPercent,
	}
	r.RemainingMinutes, r.HasRemaining = RemainingMinutes(s.capacityWh, m.PowerWatts)
	return r, nil
}
