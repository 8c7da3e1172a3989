//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	"picocam/hm01b0"
)

var errBadPin = errors.New("invalid GPIO")

// Pad control bits.
const (
	padPullDown = 1 << 2
	padPullUp   = 1 << 3
)

// rpGPIO hands pins to peripherals for the sensor driver.
type rpGPIO struct {
	pioMode machine.PinMode // PinPIO0 or PinPIO1, matching the executor
}

func newGPIO(pioBlock int) *rpGPIO {
	g := &rpGPIO{pioMode: machine.PinPIO0}
	if pioBlock == 1 {
		g.pioMode = machine.PinPIO1
	}
	return g
}

func pinOf(pin hm01b0.Pin) (machine.Pin, error) {
	if pin < 0 || pin >= 30 {
		return machine.NoPin, errBadPin
	}
	return machine.Pin(pin), nil
}

func (g *rpGPIO) ConfigureOutput(pin hm01b0.Pin) error {
	p, err := pinOf(pin)
	if err != nil {
		return err
	}
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (g *rpGPIO) SetPin(pin hm01b0.Pin, high bool) error {
	p, err := pinOf(pin)
	if err != nil {
		return err
	}
	p.Set(high)
	return nil
}

// SetFunction switches the pin multiplexer. FuncNull disconnects the pad
// (TinyGo's analog mode selects the null function with pulls off).
func (g *rpGPIO) SetFunction(pin hm01b0.Pin, fn hm01b0.PinFunction) error {
	p, err := pinOf(pin)
	if err != nil {
		return err
	}
	var mode machine.PinMode
	switch fn {
	case hm01b0.FuncNull:
		mode = machine.PinAnalog
	case hm01b0.FuncSIO:
		mode = machine.PinInput
	case hm01b0.FuncI2C:
		mode = machine.PinI2C
	case hm01b0.FuncPWM:
		mode = machine.PinPWM
	case hm01b0.FuncPIO:
		mode = g.pioMode
	default:
		return errBadPin
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

// SetPull sets the pad pull resistors without touching the function.
func (g *rpGPIO) SetPull(pin hm01b0.Pin, pull hm01b0.Pull) error {
	if _, err := pinOf(pin); err != nil {
		return err
	}
	pad := (*volatile.Register32)(unsafe.Add(unsafe.Pointer(&rp.PADS_BANK0.GPIO0), 4*int(pin)))
	pad.ClearBits(padPullUp | padPullDown)
	switch pull {
	case hm01b0.PullUp:
		pad.SetBits(padPullUp)
	case hm01b0.PullDown:
		pad.SetBits(padPullDown)
	}
	return nil
}
