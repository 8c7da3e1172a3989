// Package sim provides deterministic stand-ins for the hardware around an
// HM01B0: the sensor itself (register file on the two-wire bus plus the
// vsync/hsync/pclk/data lines), a timing-program interpreter, a block
// transfer engine, GPIO and a clock generator.
//
// Everything is single threaded. Time only moves when the executor stalls
// on a signal, which makes it behave like a state machine running much
// faster than the pixel clock.
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"picocam/hm01b0"
)

// ErrNoDevice is returned for transactions addressed to anything but the
// sensor.
var ErrNoDevice = errors.New("sim: no device at address")

// Pattern produces the value of pixel (x, y) of the given frame.
type Pattern func(frame, x, y int) byte

// Gradient is the default test pattern.
func Gradient(frame, x, y int) byte {
	return byte(x + 3*y + frame)
}

// BorderValue is driven on the data lines for border pixels.
const BorderValue = 0xA5

// Blanking lengths in half pclk periods.
const (
	vblankTicks = 6
	hblankTicks = 3
)

// Transaction is one recorded bus exchange.
type Transaction struct {
	Reg   uint16
	Write []byte // value bytes after the register address
	Read  int    // number of bytes read back
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseVBlank
	phaseHBlank
	phaseLine
)

// Sensor emulates an HM01B0 on the register bus and on its output pins.
type Sensor struct {
	// Pins the sensor drives. Data lines are DataBase..DataBase+7.
	Pins hm01b0.CapturePins

	// ModelID is reported at 0x0000. NewSensor sets it to hm01b0.ModelID.
	ModelID uint16

	// ResetBusyPolls is the number of MODE_SELECT reads after a soft reset
	// that still report a busy sensor. StuckBusy keeps it busy forever.
	ResetBusyPolls int
	StuckBusy      bool

	// Pattern provides pixel values; defaults to Gradient.
	Pattern Pattern

	// Fail, when set, is consulted before every transaction.
	Fail func(reg uint16, write bool) error

	regs   [1 << 16]byte
	busy   int
	reads  map[uint16]int
	writes map[uint16]int
	log    []Transaction

	// Output lines.
	vsync, hsync, pclk bool
	data               uint8

	// Frame timeline.
	phase     phase
	gap       int
	frame     int
	line      int
	clock     int
	width     int
	height    int
	ppc       int
	bits      int
	lines     int
	lineClock int
}

// NewSensor returns a sensor in its power-on state wired to pins.
func NewSensor(pins hm01b0.CapturePins) *Sensor {
	s := &Sensor{
		Pins:    pins,
		ModelID: hm01b0.ModelID,
		reads:   make(map[uint16]int),
		writes:  make(map[uint16]int),
	}
	s.powerOn()
	return s
}

func (s *Sensor) powerOn() {
	s.regs = [1 << 16]byte{}
	s.stop()
}

// Tx implements drivers.I2C. w starts with the big-endian register address;
// remaining bytes of w are written to consecutive registers and r is filled
// from consecutive registers.
func (s *Sensor) Tx(addr uint16, w, r []byte) error {
	if addr != hm01b0.Address {
		return fmt.Errorf("%w 0x%02x", ErrNoDevice, addr)
	}
	if len(w) < 2 {
		return fmt.Errorf("sim: short register address (%d bytes)", len(w))
	}
	reg := binary.BigEndian.Uint16(w)
	write := len(w) > 2
	if s.Fail != nil {
		if err := s.Fail(reg, write); err != nil {
			return err
		}
	}

	t := Transaction{Reg: reg, Read: len(r)}
	if write {
		t.Write = append([]byte(nil), w[2:]...)
		s.writes[reg]++
		for i, b := range w[2:] {
			s.store(reg+uint16(i), b)
		}
	}
	if len(r) > 0 {
		s.reads[reg]++
		for i := range r {
			r[i] = s.load(reg + uint16(i))
		}
	}
	s.log = append(s.log, t)
	return nil
}

func (s *Sensor) load(reg uint16) byte {
	switch reg {
	case hm01b0.RegModelIDH:
		return byte(s.ModelID >> 8)
	case hm01b0.RegModelIDL:
		return byte(s.ModelID)
	case hm01b0.RegModeSelect:
		if s.StuckBusy {
			return 1
		}
		if s.busy > 0 {
			s.busy--
			return 1
		}
	}
	return s.regs[reg]
}

func (s *Sensor) store(reg uint16, v byte) {
	switch reg {
	case hm01b0.RegSWReset:
		if v&1 != 0 {
			s.powerOn()
			s.busy = s.ResetBusyPolls
			return
		}
	case hm01b0.RegModeSelect:
		if v&1 != 0 {
			s.regs[reg] = v
			s.start()
			return
		}
		s.stop()
	}
	s.regs[reg] = v
}

// Register returns the raw content of an 8-bit register.
func (s *Sensor) Register(reg uint16) byte {
	return s.regs[reg]
}

// Register16 returns the big-endian register pair at reg.
func (s *Sensor) Register16(reg uint16) uint16 {
	return uint16(s.regs[reg])<<8 | uint16(s.regs[reg+1])
}

// SetRegister stores v without triggering any side effect.
func (s *Sensor) SetRegister(reg uint16, v byte) {
	s.regs[reg] = v
}

// Reads is the number of read transactions that started at reg.
func (s *Sensor) Reads(reg uint16) int { return s.reads[reg] }

// Writes is the number of write transactions that started at reg.
func (s *Sensor) Writes(reg uint16) int { return s.writes[reg] }

// Log returns every transaction so far.
func (s *Sensor) Log() []Transaction { return s.log }

// WriteLog returns the register of every write transaction in order.
func (s *Sensor) WriteLog() []uint16 {
	var regs []uint16
	for _, t := range s.log {
		if t.Write != nil {
			regs = append(regs, t.Reg)
		}
	}
	return regs
}

// ResetLog clears transaction counters and the log.
func (s *Sensor) ResetLog() {
	s.log = nil
	s.reads = make(map[uint16]int)
	s.writes = make(map[uint16]int)
}

// Streaming reports whether MODE_SELECT enables output.
func (s *Sensor) Streaming() bool {
	return s.phase != phaseIdle
}

// Frames is the number of frames started since power on. Pattern sees
// the zero based index of the frame being sent.
func (s *Sensor) Frames() int {
	return s.frame
}

// Geometry decodes the programmed output size and data bus width from the
// register file. ok is false for combinations the sensor does not produce.
func (s *Sensor) Geometry() (width, height, bits int, ok bool) {
	switch s.regs[hm01b0.RegBitControl] {
	case 0x02:
		bits = 8
	case 0x42:
		bits = 4
	case 0x22:
		bits = 1
	default:
		return 0, 0, 0, false
	}
	rx, ry := s.regs[hm01b0.RegReadoutX], s.regs[hm01b0.RegReadoutY]
	bin, qvga := s.regs[hm01b0.RegBinningMode], s.regs[hm01b0.RegQVGAWinEn]
	switch {
	case rx == 0x01 && ry == 0x01 && bin == 0x00 && qvga == 0x00:
		width, height = 320, 320
	case rx == 0x01 && ry == 0x01 && bin == 0x00 && qvga == 0x01:
		width, height = 320, 240
	case rx == 0x03 && ry == 0x03 && bin == 0x03 && qvga == 0x01:
		width, height = 160, 120
	default:
		return 0, 0, 0, false
	}
	return width, height, bits, true
}

func (s *Sensor) start() {
	w, h, bits, ok := s.Geometry()
	if !ok {
		// Garbage configuration: the lines stay quiet.
		s.stop()
		return
	}
	s.width, s.height, s.bits = w, h, bits
	s.ppc = 8 / bits
	s.lines = h + 2*hm01b0.BorderPixels
	s.lineClock = (w + 2*hm01b0.BorderPixels) * s.ppc
	s.enterVBlank()
}

func (s *Sensor) stop() {
	s.phase = phaseIdle
	s.vsync, s.hsync, s.pclk = false, false, false
	s.data = 0
}

func (s *Sensor) enterVBlank() {
	s.phase = phaseVBlank
	s.gap = vblankTicks
	s.vsync, s.hsync, s.pclk = false, false, false
}

func (s *Sensor) enterHBlank() {
	s.phase = phaseHBlank
	s.gap = hblankTicks
	s.hsync, s.pclk = false, false
}

// Level implements Signals.
func (s *Sensor) Level(pin hm01b0.Pin) bool {
	switch {
	case pin == s.Pins.VSYNC:
		return s.vsync
	case pin == s.Pins.HSYNC:
		return s.hsync
	case pin == s.Pins.PCLK:
		return s.pclk
	case pin >= s.Pins.DataBase && pin < s.Pins.DataBase+8:
		return s.data>>uint(pin-s.Pins.DataBase)&1 != 0
	}
	return false
}

// Advance implements Signals by moving the output lines half a pixel clock
// period forward.
func (s *Sensor) Advance() {
	switch s.phase {
	case phaseVBlank:
		if s.gap--; s.gap > 0 {
			return
		}
		s.vsync = true
		s.frame++
		s.line = 0
		s.enterHBlank()
	case phaseHBlank:
		if s.gap--; s.gap > 0 {
			return
		}
		s.hsync = true
		s.clock = 0
		s.phase = phaseLine
	case phaseLine:
		if !s.pclk {
			s.pclk = true
			s.data = s.busValue(s.line, s.clock)
			return
		}
		s.pclk = false
		s.clock++
		if s.clock < s.lineClock {
			return
		}
		s.line++
		if s.line < s.lines {
			s.enterHBlank()
			return
		}
		s.enterVBlank()
	}
}

func (s *Sensor) busValue(line, clock int) uint8 {
	const border = hm01b0.BorderPixels
	x := clock/s.ppc - border
	y := line - border
	v := byte(BorderValue)
	if x >= 0 && x < s.width && y >= 0 && y < s.height {
		p := s.Pattern
		if p == nil {
			p = Gradient
		}
		v = p(s.frame-1, x, y)
	}
	// Narrow buses send the least significant part first.
	sub := clock % s.ppc
	switch s.bits {
	case 4:
		return (v >> (4 * sub)) & 0x0f
	case 1:
		return (v >> sub) & 0x01
	}
	return v
}
