// Package ina219 implements a driver for the TI INA219 high-side current
// and power monitor, the sensor fitted to most Raspberry Pi UPS HATs.
//
// The device exposes six 16-bit registers over I2C. The driver programs a
// fixed 32 V / 2 A operating point (calibration plus configuration word) and
// decodes the four measurement registers into physical units. Measurement
// registers are two's-complement words, except bus voltage which carries the
// value left-shifted by three bits above conversion-status flags.
package ina219

import (
	"fmt"
	"math"
)

// Register addresses.
const (
	regConfig       = 0x00
	regShuntVoltage = 0x01
	regBusVoltage   = 0x02
	regPower        = 0x03
	regCurrent      = 0x04
	regCalibration  = 0x05
)

// Configuration register fields selecting the 32 V / 2 A operating point:
// 32 V bus range, ±320 mV shunt gain, continuous shunt-and-bus conversion.
const (
	configBusRange32V    = 0x2000
	configGain320MV      = 0x1800
	configModeContinuous = 0x0007
)

// Scale factors tied to that operating point. The calibration formula works
// in amps; decoding applies the same current step in milliamps.
const (
	currentLSBAmps     = 0.0001 // 100 µA per bit
	currentLSBMilliamp = 0.1    // the same step, in mA
	powerLSBWatts      = 0.002  // 2 mW per bit
	shuntLSBMillivolts = 0.01   // 10 µV per bit
	busLSBVolts        = 0.004  // 4 mV per bit, after the 3-bit shift
	calibrationScale   = 0.04096
)

// DefaultAddr is the I2C address UPS HATs strap the INA219 to.
const DefaultAddr = 0x41

// Dev is a calibrated INA219. It owns the calibration state and talks to
// the device through a Transport. Methods are not safe for concurrent use;
// the device has no notion of overlapping transactions, so callers must
// serialize access themselves.
type Dev struct {
	t          Transport
	shuntOhms  float64
	calValue   uint16
	configWord uint16
}

// New computes the calibration for the given shunt resistor, programs the
// device and returns a ready Dev. The calibration register must be written
// before the current and power registers carry meaningful values, so New
// fails if the device cannot be programmed.
func New(t Transport, shuntOhms float64) (*Dev, error) {
	if shuntOhms <= 0 {
		return nil, fmt.Errorf("ina219: shunt resistance must be positive, got %g", shuntOhms)
	}
	cal := calibrationScale / (currentLSBAmps * shuntOhms)
	if cal > math.MaxUint16 {
		return nil, fmt.Errorf("ina219: calibration value %.0f does not fit the register (shunt %g Ω too small)", cal, shuntOhms)
	}
	d := &Dev{
		t:          t,
		shuntOhms:  shuntOhms,
		calValue:   uint16(cal),
		configWord: configBusRange32V | configGain320MV | configModeContinuous,
	}
	if err := d.Calibrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Calibrate programs the calibration register followed by the configuration
// word. New calls it once; calling it again re-applies the identical two
// values, so it can be used to reinitialize a device that lost power.
func (d *Dev) Calibrate() error {
	if err := d.t.WriteRegister(regCalibration, d.calValue); err != nil {
		return fmt.Errorf("ina219: write calibration: %w", err)
	}
	if err := d.t.WriteRegister(regConfig, d.configWord); err != nil {
		return fmt.Errorf("ina219: write config: %w", err)
	}
	return nil
}

// CalibrationValue returns the value programmed into the calibration
// register, floor(0.04096 / (currentLSB · shunt)).
func (d *Dev) CalibrationValue() uint16 { return d.calValue }

// ConfigWord returns the value programmed into the configuration register.
func (d *Dev) ConfigWord() uint16 { return d.configWord }

// signed16 reinterprets a raw register word as a two's-complement quantity.
func signed16(raw uint16) float64 {
	return float64(int16(raw))
}

// ShuntVoltage returns the drop across the shunt resistor in millivolts.
func (d *Dev) ShuntVoltage() (float64, error) {
	raw, err := d.t.ReadRegister(regShuntVoltage)
	if err != nil {
		return 0, fmt.Errorf("ina219: read shunt voltage: %w", err)
	}
	return signed16(raw) * shuntLSBMillivolts, nil
}

// BusVoltage returns the bus-side (load) voltage in volts. The low three
// bits of the register are conversion flags and are discarded; the value is
// unsigned, so no sign correction applies.
func (d *Dev) BusVoltage() (float64, error) {
	raw, err := d.t.ReadRegister(regBusVoltage)
	if err != nil {
		return 0, fmt.Errorf("ina219: read bus voltage: %w", err)
	}
	return float64(raw>>3) * busLSBVolts, nil
}

// Current returns the current through the shunt in milliamps. Negative
// values mean the battery is charging rather than supplying the load.
func (d *Dev) Current() (float64, error) {
	raw, err := d.t.ReadRegister(regCurrent)
	if err != nil {
		return 0, fmt.Errorf("ina219: read current: %w", err)
	}
	return signed16(raw) * currentLSBMilliamp, nil
}

// Power returns the power register reading in watts.
func (d *Dev) Power() (float64, error) {
	raw, err := d.t.ReadRegister(regPower)
	if err != nil {
		return 0, fmt.Errorf("ina219: read power: %w", err)
	}
	return signed16(raw) * powerLSBWatts, nil
}

// Measurement is one decoded sample of the four measurement registers.
type Measurement struct {
	ShuntMillivolts  float64
	BusVolts         float64
	CurrentMilliamps float64
	PowerWatts       float64
}

// Read captures the four measurement registers back to back and decodes
// them. The first failed register read aborts the whole sample; a
// Measurement is never partially filled.
func (d *Dev) Read() (Measurement, error) {
	rawShunt, err := d.t.ReadRegister(regShuntVoltage)
	if err != nil {
		return Measurement{}, fmt.Errorf("ina219: read shunt voltage: %w", err)
	}
	rawBus, err := d.t.ReadRegister(regBusVoltage)
	if err != nil {
		return Measurement{}, fmt.Errorf("ina219: read bus voltage: %w", err)
	}
	rawCurrent, err := d.t.ReadRegister(regCurrent)
	if err != nil {
		return Measurement{}, fmt.Errorf("ina219: read current: %w", err)
	}
	rawPower, err := d.t.ReadRegister(regPower)
	if err != nil {
		return Measurement{}, fmt.Errorf("ina219: read power: %w", err)
	}
	return Measurement{
		ShuntMillivolts:  signed16(rawShunt) * shuntLSBMillivolts,
		BusVolts:         float64(rawBus>>3) * busLSBVolts,
		CurrentMilliamps: signed16(rawCurrent) * currentLSBMilliamp,
		PowerWatts:       signed16(rawPower) * powerLSBWatts,
	}, nil
}
