package hm01b0

import (
	"strconv"
	"strings"
)

// Op is a timing program primitive.
type Op uint8

const (
	// OpPull blocks until a parameter word is available and loads it into
	// the parameter register.
	OpPull Op = iota
	// OpLatch copies the parameter register into a counter.
	OpLatch
	// OpWaitSignal stalls until Pin reads Level.
	OpWaitSignal
	// OpSetCounter loads an immediate into a counter.
	OpSetCounter
	// OpJumpIfCounterNonzero branches to Target when the counter is not
	// zero, decrementing it afterwards either way.
	OpJumpIfCounterNonzero
	// OpShiftIn shifts Bits bits from the input pins into the output
	// shift register.
	OpShiftIn
)

// Counter names one of the two scratch counters of the state machine.
type Counter uint8

const (
	CounterX Counter = iota
	CounterY
)

func (c Counter) String() string {
	if c == CounterX {
		return "x"
	}
	return "y"
}

// Instruction is one tagged timing program step. Only the fields relevant
// to Op are meaningful.
type Instruction struct {
	Op      Op
	Pin     Pin
	Level   bool
	Counter Counter
	Value   uint8
	Target  uint8
	Bits    uint8
}

// Program is a capture timing program plus the state machine settings it
// depends on. Execution wraps from Wrap back to WrapTarget.
type Program struct {
	Instructions []Instruction
	WrapTarget   uint8
	Wrap         uint8

	// InBase is the first of InBits consecutive data pins read by OpShiftIn.
	InBase Pin
	InBits uint8

	// Output shift register: bits enter from the top when ShiftRight is
	// set; a full PushThreshold bits are queued automatically with Autopush.
	ShiftRight    bool
	Autopush      bool
	PushThreshold uint8
}

// CapturePins are the sensor output lines wired to the state machine.
type CapturePins struct {
	VSYNC    Pin
	HSYNC    Pin
	PCLK     Pin
	DataBase Pin
}

// Limits of the state machine instruction encoding.
const (
	maxInstructions = 32
	maxImmediate    = 31
	maxPin          = 31
)

type programBuilder struct {
	insts []Instruction
	err   error
}

func (b *programBuilder) pc() uint8 {
	return uint8(len(b.insts))
}

func (b *programBuilder) emit(in Instruction) {
	if len(b.insts) >= maxInstructions {
		b.fail()
	}
	b.insts = append(b.insts, in)
}

func (b *programBuilder) fail() {
	if b.err == nil {
		b.err = ErrProgramRange
	}
}

func (b *programBuilder) pull() {
	b.emit(Instruction{Op: OpPull})
}

func (b *programBuilder) latch(c Counter) {
	b.emit(Instruction{Op: OpLatch, Counter: c})
}

func (b *programBuilder) wait(pin Pin, level bool) {
	if pin < 0 || pin > maxPin {
		b.fail()
	}
	b.emit(Instruction{Op: OpWaitSignal, Pin: pin, Level: level})
}

func (b *programBuilder) set(c Counter, v int) {
	if v < 0 || v > maxImmediate {
		b.fail()
	}
	b.emit(Instruction{Op: OpSetCounter, Counter: c, Value: uint8(v)})
}

func (b *programBuilder) jumpDec(c Counter, target uint8) {
	b.emit(Instruction{Op: OpJumpIfCounterNonzero, Counter: c, Target: target})
}

func (b *programBuilder) shiftIn(bits int) {
	if bits < 1 || bits > 8 {
		b.fail()
	}
	b.emit(Instruction{Op: OpShiftIn, Bits: uint8(bits)})
}

// BuildCaptureProgram synthesizes the frame capture program.
//
// The program waits for the start of a frame on vsync, drops borderPx
// lines, then for every following line drops borderPx*pixelsPerClock pclk
// cycles and shifts dataBits bits per pclk into the output queue until the
// latched per-line count runs out. Everything is counted in signal edges,
// so capture is independent of the state machine clock.
func BuildCaptureProgram(pins CapturePins, dataBits, borderPx, pixelsPerClock int) (*Program, error) {
	if pins.DataBase < 0 || int(pins.DataBase)+dataBits-1 > maxPin {
		return nil, ErrProgramRange
	}
	if borderPx < 1 || pixelsPerClock < 1 {
		return nil, ErrProgramRange
	}

	var b programBuilder

	// Parameter for the first frame; later lines re-latch the same word.
	b.pull()

	// Frame sync: falling then rising vsync.
	b.wait(pins.VSYNC, false)
	b.wait(pins.VSYNC, true)

	// Border lines.
	b.set(CounterY, borderPx-1)
	borderLine := b.pc()
	b.wait(pins.HSYNC, true)
	b.wait(pins.HSYNC, false)
	b.jumpDec(CounterY, borderLine)

	wrapTarget := b.pc()
	b.latch(CounterX)
	b.wait(pins.HSYNC, true)

	// Border pixels at the start of the line.
	b.set(CounterY, borderPx*pixelsPerClock-1)
	borderPixel := b.pc()
	b.wait(pins.PCLK, true)
	b.wait(pins.PCLK, false)
	b.jumpDec(CounterY, borderPixel)

	// Live pixels.
	pixel := b.pc()
	b.wait(pins.PCLK, true)
	b.shiftIn(dataBits)
	b.wait(pins.PCLK, false)
	b.jumpDec(CounterX, pixel)

	b.wait(pins.HSYNC, false)
	wrap := b.pc() - 1

	if b.err != nil {
		return nil, b.err
	}
	return &Program{
		Instructions:  b.insts,
		WrapTarget:    wrapTarget,
		Wrap:          wrap,
		InBase:        pins.DataBase,
		InBits:        uint8(dataBits),
		ShiftRight:    true,
		Autopush:      true,
		PushThreshold: 8,
	}, nil
}

// String renders the program as an assembler listing.
func (p *Program) String() string {
	var sb strings.Builder
	for i, in := range p.Instructions {
		if uint8(i) == p.WrapTarget {
			sb.WriteString(".wrap_target\n")
		}
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(":\t")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
		if uint8(i) == p.Wrap {
			sb.WriteString(".wrap\n")
		}
	}
	return sb.String()
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPull:
		return "pull block"
	case OpLatch:
		return "mov " + in.Counter.String() + ", osr"
	case OpWaitSignal:
		level := "0"
		if in.Level {
			level = "1"
		}
		return "wait " + level + " gpio " + strconv.Itoa(int(in.Pin))
	case OpSetCounter:
		return "set " + in.Counter.String() + ", " + strconv.Itoa(int(in.Value))
	case OpJumpIfCounterNonzero:
		return "jmp " + in.Counter.String() + "-- " + strconv.Itoa(int(in.Target))
	case OpShiftIn:
		return "in pins, " + strconv.Itoa(int(in.Bits))
	}
	return "?"
}
