package hm01b0

import (
	"fmt"
	"time"
)

const (
	resetHoldTime     = 100 * time.Millisecond
	resetPollInterval = 100 * time.Millisecond
	resetPollAttempts = 10
)

// MasterClock is the master clock setting for a 125MHz system clock:
// 125MHz / 1.25 / 4 = 25MHz at 50% duty, within the sensor PLL lock range.
var MasterClock = ClockConfig{
	DivInt:  1,
	DivFrac: 4, // 4/16 = .25
	Top:     3,
	Level:   2,
}

// powerUp pulses the reset line, starts the master clock and hands the bus
// pins to the two-wire peripheral. Unconnected pins are skipped.
func (d *Device) powerUp() error {
	pins := d.cfg.Pins

	if pins.Reset.Connected() {
		d.claimed = true
		if err := d.cfg.GPIO.ConfigureOutput(pins.Reset); err != nil {
			return fmt.Errorf("hm01b0: configure reset pin: %w", err)
		}
		if err := d.cfg.GPIO.SetPin(pins.Reset, false); err != nil {
			return fmt.Errorf("hm01b0: assert reset: %w", err)
		}
		d.sleep(resetHoldTime)
		if err := d.cfg.GPIO.SetPin(pins.Reset, true); err != nil {
			return fmt.Errorf("hm01b0: release reset: %w", err)
		}
	}

	if pins.MCLK.Connected() {
		d.claimed = true
		if err := d.cfg.GPIO.SetFunction(pins.MCLK, FuncPWM); err != nil {
			return fmt.Errorf("hm01b0: configure mclk pin: %w", err)
		}
		if err := d.cfg.Clock.Start(pins.MCLK, MasterClock); err != nil {
			return fmt.Errorf("hm01b0: start mclk: %w", err)
		}
	}

	for _, pin := range [...]Pin{pins.SDA, pins.SCL} {
		if !pin.Connected() {
			continue
		}
		d.claimed = true
		if err := d.cfg.GPIO.SetFunction(pin, FuncI2C); err != nil {
			return fmt.Errorf("hm01b0: configure bus pin %d: %w", pin, err)
		}
		if err := d.cfg.GPIO.SetPull(pin, PullUp); err != nil {
			return fmt.Errorf("hm01b0: pull up bus pin %d: %w", pin, err)
		}
	}
	return nil
}

// CheckModelID verifies that the part on the bus is an HM01B0.
func CheckModelID(r *Registers) error {
	id, err := r.Read16(RegModelIDH)
	if err != nil {
		return err
	}
	if id != ModelID {
		return &ModelIDError{Got: id}
	}
	return nil
}

// SoftReset issues a software reset and polls MODE_SELECT until the sensor
// reports standby. It gives up after a fixed number of polls.
func SoftReset(r *Registers, sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	if err := r.Write8(RegSWReset, swResetTrigger); err != nil {
		return err
	}
	for i := 0; i < resetPollAttempts; i++ {
		mode, err := r.Read8(RegModeSelect)
		if err != nil {
			return err
		}
		if mode == modeSelectStandby {
			return nil
		}
		sleep(resetPollInterval)
	}
	return ErrResetTimeout
}
