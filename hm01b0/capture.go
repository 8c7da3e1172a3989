package hm01b0

import "fmt"

// ReadFrame captures exactly one frame into buf, one byte per pixel in
// row-major order. len(buf) must equal FrameSize; anything else is a
// programming error and panics.
//
// ReadFrame blocks until the transfer engine has moved the whole frame.
// There is no timeout: if the sensor stops producing pixels the call never
// returns.
func (d *Device) ReadFrame(buf []byte) error {
	if !d.configured {
		return ErrNotConfigured
	}
	if len(buf) != d.mode.FrameSize() {
		panic(fmt.Sprintf("hm01b0: frame buffer is %d bytes, want %d", len(buf), d.mode.FrameSize()))
	}

	ex := d.cfg.Executor
	if err := ex.Restart(); err != nil {
		return fmt.Errorf("hm01b0: restart capture program: %w", err)
	}

	ch, err := d.cfg.DMA.Claim()
	if err != nil {
		return fmt.Errorf("hm01b0: claim transfer channel: %w", err)
	}
	err = ch.Configure(Transfer{
		Src:          ex.Queue(),
		Dst:          buf,
		SrcIncrement: false,
		DstIncrement: true,
	})
	if err != nil {
		ch.Release()
		return fmt.Errorf("hm01b0: configure transfer: %w", err)
	}
	ch.Start()

	ex.SetEnabled(true)
	ex.Put(d.mode.LineParameter())

	if err := d.regs.Write8(RegModeSelect, modeSelectStreaming); err != nil {
		ex.SetEnabled(false)
		ch.Release()
		return err
	}

	ch.Wait()

	ex.SetEnabled(false)
	ch.Release()

	return d.regs.Write8(RegModeSelect, modeSelectStandby)
}
