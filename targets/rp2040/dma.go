//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"runtime"
	"runtime/volatile"
	"unsafe"

	"picocam/hm01b0"
)

const numDMAChannels = 12

var (
	errNoDMAChannel  = errors.New("dma: no free channel")
	errDMAForeignSrc = errors.New("dma: source is not a PIO queue")
)

// dmaChannelRegs is the register block of one channel; the alias
// registers that follow are not used.
type dmaChannelRegs struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	_           [12]volatile.Register32
}

// CTRL_TRIG fields.
const (
	dmaCtrlEnable      = 1 << 0
	dmaCtrlHighPrio    = 1 << 1
	dmaCtrlSizeByte    = 0 << 2
	dmaCtrlIncrRead    = 1 << 4
	dmaCtrlIncrWrite   = 1 << 5
	dmaCtrlChainShift  = 11
	dmaCtrlTreqShift   = 15
	dmaCtrlIRQQuiet    = 1 << 21
	dmaCtrlBusy        = 1 << 24
	dmaCtrlErrorsClear = 3 << 29 // READ_ERROR and WRITE_ERROR are write-one-to-clear
)

// rpDMA hands out DMA channels from a claim bitmap.
type rpDMA struct {
	claimed uint16
}

func newDMA() *rpDMA {
	rp.RESETS.RESET.ClearBits(rp.RESETS_RESET_DMA)
	for !rp.RESETS.RESET_DONE.HasBits(rp.RESETS_RESET_DONE_DMA) {
	}
	return &rpDMA{}
}

func (d *rpDMA) Claim() (hm01b0.Channel, error) {
	for n := uint8(0); n < numDMAChannels; n++ {
		if d.claimed&(1<<n) == 0 {
			d.claimed |= 1 << n
			regs := (*dmaChannelRegs)(unsafe.Add(unsafe.Pointer(&rp.DMA.CH0_READ_ADDR), uintptr(n)*unsafe.Sizeof(dmaChannelRegs{})))
			return &dmaChannel{dma: d, num: n, regs: regs}, nil
		}
	}
	return nil, errNoDMAChannel
}

type dmaChannel struct {
	dma  *rpDMA
	num  uint8
	regs *dmaChannelRegs
	ctrl uint32
	dst  []byte
}

// Configure prepares a byte-wide, DREQ paced transfer from a PIO RX FIFO.
// The channel chains to itself, which disables chaining.
func (c *dmaChannel) Configure(t hm01b0.Transfer) error {
	q, ok := t.Src.(pioQueue)
	if !ok {
		return errDMAForeignSrc
	}
	c.dst = t.Dst
	c.ctrl = dmaCtrlSizeByte | dmaCtrlHighPrio | dmaCtrlIRQQuiet |
		uint32(c.num)<<dmaCtrlChainShift |
		uint32(q.DREQ())<<dmaCtrlTreqShift
	if t.SrcIncrement {
		c.ctrl |= dmaCtrlIncrRead
	}
	if t.DstIncrement {
		c.ctrl |= dmaCtrlIncrWrite
	}

	c.regs.CTRL_TRIG.Set(dmaCtrlErrorsClear)
	c.regs.READ_ADDR.Set(uint32(q.addr))
	if len(t.Dst) > 0 {
		c.regs.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&t.Dst[0]))))
	}
	c.regs.TRANS_COUNT.Set(uint32(len(t.Dst)))
	return nil
}

// Start enables the channel; writing CTRL_TRIG triggers it.
func (c *dmaChannel) Start() {
	if len(c.dst) == 0 {
		return
	}
	c.regs.CTRL_TRIG.Set(c.ctrl | dmaCtrlEnable)
}

// Wait spins until the transfer count reaches zero.
func (c *dmaChannel) Wait() {
	for c.regs.CTRL_TRIG.HasBits(dmaCtrlBusy) {
		runtime.Gosched()
	}
}

// Release aborts anything in flight and returns the channel to the pool.
func (c *dmaChannel) Release() {
	if c.dma == nil {
		return
	}
	if c.regs.CTRL_TRIG.HasBits(dmaCtrlBusy) {
		rp.DMA.CHAN_ABORT.Set(1 << c.num)
		for rp.DMA.CHAN_ABORT.HasBits(1 << c.num) {
		}
	}
	c.regs.CTRL_TRIG.Set(0)
	c.dma.claimed &^= 1 << c.num
	c.dma = nil
}
