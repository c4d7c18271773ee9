package ina219

import (
	"periph.io/x/conn/v3"
)

// Transport carries 16-bit register transactions to the device. It is the
// only seam between the driver and the bus, so tests can substitute a fake
// and the driver never touches I2C directly.
type Transport interface {
	// ReadRegister reads two bytes from the register and reassembles them
	// big-endian, high byte first.
	ReadRegister(reg uint8) (uint16, error)
	// WriteRegister writes the register address followed by the value's
	// high and low bytes in a single transaction.
	WriteRegister(reg uint8, value uint16) error
}

// I2CTransport is a Transport over a periph connection, typically an
// i2c.Dev bound to the sensor's address.
type I2CTransport struct {
	c conn.Conn
}

// NewI2CTransport wraps a periph connection.
func NewI2CTransport(c conn.Conn) *I2CTransport {
	return &I2CTransport{c: c}
}

// WriteRegister sends [reg, hi, lo] in one write. Errors come back from the
// bus as-is; there is no retry at this layer.
func (t *I2CTransport) WriteRegister(reg uint8, value uint16) error {
	return t.c.Tx([]byte{reg, byte(value >> 8), byte(value)}, nil)
}

// ReadRegister selects the register then reads two bytes back.
func (t *I2CTransport) ReadRegister(reg uint8) (uint16, error) {
	var buf [2]byte
	if err := t.c.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}
