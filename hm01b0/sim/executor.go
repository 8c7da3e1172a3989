package sim

import (
	"errors"

	"picocam/hm01b0"
)

// fifoDepth matches the four-entry FIFOs of the real state machine.
const fifoDepth = 4

var errNotLoaded = errors.New("sim: no program loaded")

// Signals is the input side of the executor: pin levels plus a way to let
// time pass while the program waits.
type Signals interface {
	Level(pin hm01b0.Pin) bool
	Advance()
}

// FIFO is a word queue between the executor and the outside world.
type FIFO struct {
	words []uint32
	dreq  uint8
}

// DREQ implements hm01b0.Queue.
func (f *FIFO) DREQ() uint8 { return f.dreq }

// Len is the number of queued words.
func (f *FIFO) Len() int { return len(f.words) }

func (f *FIFO) full() bool { return len(f.words) >= fifoDepth }

func (f *FIFO) push(v uint32) { f.words = append(f.words, v) }

// Pop removes the oldest word. ok is false when the queue is empty.
func (f *FIFO) Pop() (v uint32, ok bool) {
	if len(f.words) == 0 {
		return 0, false
	}
	v = f.words[0]
	f.words = f.words[1:]
	return v, true
}

func (f *FIFO) reset() { f.words = f.words[:0] }

// Executor interprets an hm01b0.Program instruction by instruction.
type Executor struct {
	signals Signals

	prog    *hm01b0.Program
	enabled bool

	pc       uint8
	x, y     uint32
	osr      uint32
	isr      uint32
	isrCount uint8

	tx FIFO
	rx FIFO

	// Steps counts executed (non-stalled) instructions.
	Steps int
	// Loads and Unloads count program installs and removals.
	Loads   int
	Unloads int
}

// NewExecutor returns an executor reading its inputs from signals.
func NewExecutor(signals Signals) *Executor {
	return &Executor{
		signals: signals,
		tx:      FIFO{dreq: 0},
		rx:      FIFO{dreq: 4},
	}
}

// Load implements hm01b0.Executor.
func (e *Executor) Load(p *hm01b0.Program) error {
	if e.prog != nil {
		return errors.New("sim: program already loaded")
	}
	if len(p.Instructions) == 0 || len(p.Instructions) > 32 || int(p.Wrap) >= len(p.Instructions) || p.WrapTarget > p.Wrap {
		return hm01b0.ErrProgramRange
	}
	e.prog = p
	e.Loads++
	return e.Restart()
}

// Unload implements hm01b0.Executor.
func (e *Executor) Unload() error {
	if e.prog == nil {
		return errNotLoaded
	}
	e.prog = nil
	e.enabled = false
	e.Unloads++
	return nil
}

// Loaded reports whether a program is installed.
func (e *Executor) Loaded() bool { return e.prog != nil }

// Restart implements hm01b0.Executor.
func (e *Executor) Restart() error {
	if e.prog == nil {
		return errNotLoaded
	}
	e.enabled = false
	e.pc = 0
	e.x, e.y, e.osr, e.isr, e.isrCount = 0, 0, 0, 0, 0
	e.tx.reset()
	e.rx.reset()
	return nil
}

// SetEnabled implements hm01b0.Executor.
func (e *Executor) SetEnabled(enabled bool) { e.enabled = enabled && e.prog != nil }

// Enabled reports whether instructions are being executed.
func (e *Executor) Enabled() bool { return e.enabled }

// Put implements hm01b0.Executor. Nothing drains the input queue while the
// caller is blocked, so a full queue is a deadlock and panics.
func (e *Executor) Put(v uint32) {
	if e.tx.full() {
		panic("sim: executor input queue full")
	}
	e.tx.push(v)
}

// Queue implements hm01b0.Executor.
func (e *Executor) Queue() hm01b0.Queue { return &e.rx }

// RX returns the output queue.
func (e *Executor) RX() *FIFO { return &e.rx }

// PC is the current instruction index.
func (e *Executor) PC() uint8 { return e.pc }

// Step executes one instruction. When the instruction stalls the signals
// are advanced instead and Step reports false.
func (e *Executor) Step() bool {
	if !e.enabled {
		e.signals.Advance()
		return false
	}
	if !e.exec(e.prog.Instructions[e.pc]) {
		e.signals.Advance()
		return false
	}
	e.Steps++
	return true
}

func (e *Executor) counter(c hm01b0.Counter) *uint32 {
	if c == hm01b0.CounterX {
		return &e.x
	}
	return &e.y
}

func (e *Executor) advance() {
	if e.pc == e.prog.Wrap {
		e.pc = e.prog.WrapTarget
		return
	}
	e.pc++
}

func (e *Executor) exec(in hm01b0.Instruction) bool {
	switch in.Op {
	case hm01b0.OpPull:
		v, ok := e.tx.Pop()
		if !ok {
			return false
		}
		e.osr = v
	case hm01b0.OpLatch:
		*e.counter(in.Counter) = e.osr
	case hm01b0.OpWaitSignal:
		if e.signals.Level(in.Pin) != in.Level {
			return false
		}
	case hm01b0.OpSetCounter:
		*e.counter(in.Counter) = uint32(in.Value)
	case hm01b0.OpJumpIfCounterNonzero:
		c := e.counter(in.Counter)
		v := *c
		*c = v - 1
		if v != 0 {
			e.pc = in.Target
			return true
		}
	case hm01b0.OpShiftIn:
		return e.shiftIn(in.Bits)
	}
	e.advance()
	return true
}

func (e *Executor) shiftIn(bits uint8) bool {
	p := e.prog
	push := p.Autopush && e.isrCount+bits >= p.PushThreshold
	if push && e.rx.full() {
		return false
	}

	var v uint32
	for i := uint8(0); i < bits; i++ {
		if e.signals.Level(p.InBase + hm01b0.Pin(i)) {
			v |= 1 << i
		}
	}
	if p.ShiftRight {
		e.isr = e.isr>>bits | v<<(32-bits)
	} else {
		e.isr = e.isr<<bits | v
	}
	e.isrCount += bits

	if push {
		e.rx.push(e.isr)
		e.isr, e.isrCount = 0, 0
	}
	e.advance()
	return true
}
