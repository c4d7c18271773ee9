package ina219

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Config describes how to reach the sensor on the host.
type Config struct {
	// Bus is the i2creg bus name, e.g. "1" for /dev/i2c-1.
	Bus string
	// Addr is the 7-bit device address, DefaultAddr on most UPS HATs.
	Addr uint16
	// ShuntOhms is the shunt resistor value, 0.1 Ω on the usual boards.
	ShuntOhms float64
}

// Open initializes the periph host drivers, opens the I2C bus and returns a
// calibrated device. The returned closer releases the bus; closing it
// invalidates the device.
func Open(cfg Config) (*Dev, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("ina219: init host drivers: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("ina219: open i2c bus %q: %w", cfg.Bus, err)
	}
	t := NewI2CTransport(&i2c.Dev{Bus: bus, Addr: cfg.Addr})
	d, err := New(t, cfg.ShuntOhms)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return d, bus, nil
}
