package sim

import (
	"errors"
	"fmt"

	"picocam/hm01b0"
)

// DefaultStepBudget bounds Channel.Wait. A 320x320 frame on a one bit bus
// takes a few million executor steps.
const DefaultStepBudget = 64 << 20

var (
	ErrNoChannel     = errors.New("sim: all transfer channels claimed")
	ErrForeignSource = errors.New("sim: transfer source is not the executor queue")
)

// DMA is a block transfer engine that moves bytes out of an Executor's
// output queue. Waiting on a channel is what drives the simulation.
type DMA struct {
	Exec *Executor

	// Channels is the number of channels that can be claimed at once.
	// Defaults to 1.
	Channels int

	// StepBudget limits the number of executor iterations in one Wait.
	StepBudget int

	claimed int
	// Claims counts successful Claim calls.
	Claims int
}

// NewDMA returns an engine draining exec.
func NewDMA(exec *Executor) *DMA {
	return &DMA{Exec: exec, Channels: 1, StepBudget: DefaultStepBudget}
}

// Claimed is the number of channels currently held.
func (d *DMA) Claimed() int { return d.claimed }

// Claim implements hm01b0.BlockTransfer.
func (d *DMA) Claim() (hm01b0.Channel, error) {
	n := d.Channels
	if n == 0 {
		n = 1
	}
	if d.claimed >= n {
		return nil, ErrNoChannel
	}
	d.claimed++
	d.Claims++
	return &channel{dma: d}, nil
}

type channel struct {
	dma      *DMA
	t        hm01b0.Transfer
	n        int
	started  bool
	released bool
}

func (c *channel) Configure(t hm01b0.Transfer) error {
	if t.Src != c.dma.Exec.Queue() {
		return ErrForeignSource
	}
	if t.SrcIncrement {
		return errors.New("sim: queue source cannot increment")
	}
	c.t = t
	c.n = 0
	return nil
}

func (c *channel) Start() { c.started = true }

// Wait moves one byte per queued word, taken from bits 31..24, until the
// destination is full.
func (c *channel) Wait() {
	if !c.started {
		panic("sim: wait on a channel that was never started")
	}
	budget := c.dma.StepBudget
	if budget == 0 {
		budget = DefaultStepBudget
	}
	ex := c.dma.Exec
	for steps := 0; c.n < len(c.t.Dst); steps++ {
		if steps > budget {
			panic(fmt.Sprintf("sim: transfer stalled after %d of %d bytes", c.n, len(c.t.Dst)))
		}
		if w, ok := ex.rx.Pop(); ok {
			i := 0
			if c.t.DstIncrement {
				i = c.n
			}
			c.t.Dst[i] = byte(w >> 24)
			c.n++
			continue
		}
		ex.Step()
	}
}

func (c *channel) Release() {
	if c.released {
		return
	}
	c.released = true
	c.dma.claimed--
}
