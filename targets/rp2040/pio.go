//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"picocam/hm01b0"
)

var (
	errStateMachineBusy = errors.New("pio: state machine already claimed")
	errNoProgram        = errors.New("pio: no program loaded")
)

// The capture program is assembled for address 0 and loaded there, so
// jump targets need no relocation.
const captureOrigin = 0

// DREQ numbers of the RX FIFOs of PIO0 and PIO1, state machine 0.
const (
	dreqPIO0RX0 = 4
	dreqPIO1RX0 = 12
)

// pioExecutor runs a hm01b0.Program on one PIO state machine.
type pioExecutor struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	block  uint8
	smNum  uint8
	prog   *hm01b0.Program
	code   []uint16
	offset uint8
	queue  pioQueue
}

// pioQueue is the RX FIFO of the state machine, read one byte at a time
// from its most significant byte lane.
type pioQueue struct {
	dreq uint8
	addr uintptr
}

func (q pioQueue) DREQ() uint8 { return q.dreq }

func newPIOExecutor(block, smNum uint8) *pioExecutor {
	e := &pioExecutor{block: block, smNum: smNum}
	hw := rp.PIO0
	dreq := uint8(dreqPIO0RX0)
	e.pio = rp2pio.PIO0
	if block == 1 {
		hw = rp.PIO1
		dreq = dreqPIO1RX0
		e.pio = rp2pio.PIO1
	}
	e.sm = e.pio.StateMachine(smNum)
	e.queue = pioQueue{
		dreq: dreq + smNum,
		addr: uintptr(unsafe.Pointer(&hw.RXF0)) + 4*uintptr(smNum) + 3,
	}
	return e
}

// assemble encodes a timing program into PIO instructions.
func assemble(p *hm01b0.Program) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	code := make([]uint16, len(p.Instructions))
	for i, in := range p.Instructions {
		switch in.Op {
		case hm01b0.OpPull:
			code[i] = asm.Pull(false, true).Encode()
		case hm01b0.OpLatch:
			if in.Counter == hm01b0.CounterX {
				code[i] = asm.Mov(rp2pio.MovDestX, rp2pio.MovSrcOSR).Encode()
			} else {
				code[i] = asm.Mov(rp2pio.MovDestY, rp2pio.MovSrcOSR).Encode()
			}
		case hm01b0.OpWaitSignal:
			code[i] = asm.WaitGPIO(in.Level, uint8(in.Pin)).Encode()
		case hm01b0.OpSetCounter:
			if in.Counter == hm01b0.CounterX {
				code[i] = asm.Set(rp2pio.SetDestX, in.Value).Encode()
			} else {
				code[i] = asm.Set(rp2pio.SetDestY, in.Value).Encode()
			}
		case hm01b0.OpJumpIfCounterNonzero:
			if in.Counter == hm01b0.CounterX {
				code[i] = asm.Jmp(captureOrigin+in.Target, rp2pio.JmpXNZeroDec).Encode()
			} else {
				code[i] = asm.Jmp(captureOrigin+in.Target, rp2pio.JmpYNZeroDec).Encode()
			}
		case hm01b0.OpShiftIn:
			code[i] = asm.In(rp2pio.InSrcPins, in.Bits).Encode()
		}
	}
	return code
}

func (e *pioExecutor) Load(p *hm01b0.Program) error {
	if !e.sm.TryClaim() {
		return errStateMachineBusy
	}
	code := assemble(p)
	offset, err := e.pio.AddProgram(code, captureOrigin)
	if err != nil {
		e.sm.Unclaim()
		return err
	}
	e.prog, e.code, e.offset = p, code, offset
	e.init()
	return nil
}

// init configures the state machine for the loaded program and leaves it
// disabled at the first instruction.
func (e *pioExecutor) init() {
	p := e.prog
	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(machine.Pin(p.InBase))
	cfg.SetInShift(p.ShiftRight, p.Autopush, uint16(p.PushThreshold))
	cfg.SetWrap(e.offset+p.WrapTarget, e.offset+p.Wrap)
	cfg.SetClkDivIntFrac(1, 0)

	e.sm.SetEnabled(false)
	e.sm.Init(e.offset, cfg)
	e.sm.SetPindirsConsecutive(machine.Pin(p.InBase), p.InBits, false)
}

func (e *pioExecutor) Unload() error {
	if e.prog == nil {
		return errNoProgram
	}
	e.sm.SetEnabled(false)
	e.pio.ClearProgramSection(e.offset, uint8(len(e.code)))
	e.sm.Unclaim()
	e.prog, e.code = nil, nil
	return nil
}

func (e *pioExecutor) Restart() error {
	if e.prog == nil {
		return errNoProgram
	}
	e.sm.SetEnabled(false)
	e.sm.ClearFIFOs()
	e.init()
	return nil
}

func (e *pioExecutor) SetEnabled(enabled bool) {
	e.sm.SetEnabled(enabled)
}

func (e *pioExecutor) Put(v uint32) {
	for e.sm.IsTxFIFOFull() {
	}
	e.sm.TxPut(v)
}

func (e *pioExecutor) Queue() hm01b0.Queue {
	return e.queue
}
