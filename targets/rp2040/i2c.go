//go:build rp2040

package main

import (
	"errors"
	"machine"

	"picocam/board"
)

var errI2CBus = errors.New("unsupported I2C bus")

// configureI2C sets up the two-wire bus the sensor sits on. The returned
// *machine.I2C is the drivers.I2C handed to the driver.
func configureI2C(b *board.Config) (*machine.I2C, error) {
	var bus *machine.I2C
	switch b.I2CBus {
	case 0:
		bus = machine.I2C0
	case 1:
		bus = machine.I2C1
	default:
		return nil, errI2CBus
	}

	pins, err := b.Pins()
	if err != nil {
		return nil, err
	}
	err = bus.Configure(machine.I2CConfig{
		Frequency: b.I2CFrequency,
		SDA:       machine.Pin(pins.SDA),
		SCL:       machine.Pin(pins.SCL),
	})
	if err != nil {
		return nil, err
	}
	return bus, nil
}
