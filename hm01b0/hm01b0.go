// Package hm01b0 implements a driver for the Himax HM01B0 monochrome image
// sensor attached over a two-wire register bus and a parallel pixel bus
// (vsync, hsync, pclk and 1, 4 or 8 data lines).
//
// Pixel capture runs on a signal-driven timing-program executor feeding a
// block-transfer engine; both, as well as the bus, GPIO and master clock,
// are injected through the interfaces in hal.go. The driver owns no global
// state and does no locking: callers must serialize access to a Device.
//
// Datasheet: https://www.himax.com.tw/products/cmos-image-sensor/always-on-vision-sensors/hm01b0/
package hm01b0

import (
	"time"

	"tinygo.org/x/drivers"
)

// Pins is the wiring of the sensor to the microcontroller. Reset, MCLK,
// SDA and SCL may be NoPin.
type Pins struct {
	SDA      Pin
	SCL      Pin
	VSYNC    Pin
	HSYNC    Pin
	PCLK     Pin
	DataBase Pin
	Reset    Pin
	MCLK     Pin
}

// Capture returns the subset of pins read by the timing program.
func (p Pins) Capture() CapturePins {
	return CapturePins{VSYNC: p.VSYNC, HSYNC: p.HSYNC, PCLK: p.PCLK, DataBase: p.DataBase}
}

// Config holds everything needed to bring up the sensor. It is copied by
// New and never modified afterwards.
type Config struct {
	Bus      drivers.I2C
	GPIO     GPIO
	Clock    ClockGenerator // only used when Pins.MCLK is connected
	Executor Executor
	DMA      BlockTransfer

	// Sleep is used for the reset pulse and reset polling. Defaults to
	// time.Sleep.
	Sleep func(time.Duration)

	Pins     Pins
	DataBits int
	Width    int
	Height   int
}

// Device is one HM01B0 instance.
type Device struct {
	cfg   Config
	regs  *Registers
	sleep func(time.Duration)

	mode    Mode
	program *Program

	configured bool
	loaded     bool // program installed in the executor
	claimed    bool // some pin was handed to a peripheral
}

// New returns a Device for cfg. Call Configure before use.
func New(cfg Config) *Device {
	d := &Device{
		cfg:   cfg,
		regs:  NewRegisters(cfg.Bus),
		sleep: cfg.Sleep,
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d
}

// Configure resolves the mode, powers up and resets the sensor, programs
// the readout registers and installs the capture program. On error every
// pin, the master clock and the executor are released again and the device
// is left unconfigured.
func (d *Device) Configure() error {
	if d.configured || d.loaded || d.claimed {
		d.Deinit()
	}

	// Nothing touches the bus before the request is known to be valid.
	mode, err := ResolveMode(d.cfg.Width, d.cfg.Height, d.cfg.DataBits)
	if err != nil {
		return err
	}
	if err := d.start(mode); err != nil {
		d.Deinit()
		return err
	}
	d.configured = true
	return nil
}

func (d *Device) start(mode Mode) error {
	if err := d.powerUp(); err != nil {
		return err
	}
	if err := CheckModelID(d.regs); err != nil {
		return err
	}
	if err := SoftReset(d.regs, d.sleep); err != nil {
		return err
	}
	if err := d.writeMode(mode); err != nil {
		return err
	}

	program, err := BuildCaptureProgram(d.cfg.Pins.Capture(), mode.DataBits, mode.BorderPixels, mode.PixelsPerClock)
	if err != nil {
		return err
	}
	if err := d.cfg.Executor.Load(program); err != nil {
		return err
	}
	d.loaded = true

	pins := d.cfg.Pins
	for _, pin := range [...]Pin{pins.VSYNC, pins.HSYNC, pins.PCLK} {
		d.claimed = true
		if err := d.cfg.GPIO.SetFunction(pin, FuncPIO); err != nil {
			return err
		}
	}

	d.mode = mode
	d.program = program
	return nil
}

func (d *Device) writeMode(m Mode) error {
	r := d.regs
	writes8 := [...]struct {
		addr uint16
		val  uint8
	}{
		{RegBitControl, m.BitControl},
		{RegReadoutX, m.ReadoutX},
		{RegReadoutY, m.ReadoutY},
		{RegBinningMode, m.BinningMode},
		{RegQVGAWinEn, m.QVGAWinEn},
	}
	for _, w := range writes8 {
		if err := r.Write8(w.addr, w.val); err != nil {
			return err
		}
	}
	if err := r.Write16(RegFrameLengthLine, m.FrameLengthLines); err != nil {
		return err
	}
	if err := r.Write16(RegLineLengthPCLK, m.LineLengthPCLK); err != nil {
		return err
	}
	if err := r.Write8(RegOscClkDiv, oscClkDivValue); err != nil {
		return err
	}
	// Start at half a line of integration.
	if err := r.Write16(RegIntegrationH, m.LineLengthPCLK/2); err != nil {
		return err
	}
	return r.Write8(RegGrpParamHold, grpParamApply)
}

// Deinit releases the bus, clock and reset pins and frees the executor
// program. Calling it on a released device does nothing.
func (d *Device) Deinit() {
	if d.loaded {
		d.cfg.Executor.Unload()
		d.loaded = false
	}
	if d.claimed {
		pins := d.cfg.Pins
		if pins.MCLK.Connected() && d.cfg.Clock != nil {
			d.cfg.Clock.Stop(pins.MCLK)
		}
		for _, pin := range [...]Pin{pins.SDA, pins.SCL, pins.MCLK, pins.Reset, pins.VSYNC, pins.HSYNC, pins.PCLK} {
			if pin.Connected() {
				d.cfg.GPIO.SetFunction(pin, FuncNull)
			}
		}
		d.claimed = false
	}
	d.configured = false
	d.program = nil
}

// SetCoarseIntegration sets the exposure time in line periods, clamped to
// [2, 65535].
func (d *Device) SetCoarseIntegration(lines uint32) error {
	if !d.configured {
		return ErrNotConfigured
	}
	return WriteIntegration(d.regs, lines)
}

// WriteIntegration writes the coarse integration registers and latches
// them with a grouped parameter hold. The sensor adds two lines to the
// programmed value.
func WriteIntegration(r *Registers, lines uint32) error {
	if lines < 2 {
		lines = 2
	} else if lines > 0xffff {
		lines = 0xffff
	}
	if err := r.Write16(RegIntegrationH, uint16(lines-2)); err != nil {
		return err
	}
	return r.Write8(RegGrpParamHold, grpParamApply)
}

// Configured reports whether Configure succeeded and Deinit has not been
// called since.
func (d *Device) Configured() bool {
	return d.configured
}

// Mode returns the resolved register set. Only valid when configured.
func (d *Device) Mode() Mode {
	return d.mode
}

// Program returns the installed capture program, or nil.
func (d *Device) Program() *Program {
	return d.program
}

// FrameSize is the buffer length ReadFrame expects.
func (d *Device) FrameSize() int {
	return d.mode.FrameSize()
}

// Registers gives access to the raw register protocol, for diagnostics.
func (d *Device) Registers() *Registers {
	return d.regs
}
