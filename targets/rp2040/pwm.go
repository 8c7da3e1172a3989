//go:build rp2040

package main

import (
	"device/rp"
	"runtime/volatile"
	"unsafe"

	"picocam/hm01b0"
)

// pwmSlice is the register block of one of the eight PWM slices.
type pwmSlice struct {
	CSR volatile.Register32
	DIV volatile.Register32
	CTR volatile.Register32
	CC  volatile.Register32
	TOP volatile.Register32
}

const (
	pwmCSREnable   = 1 << 0
	pwmDivIntShift = 4
	pwmCCBShift    = 16
)

// GPIO N is driven by slice (N/2)%8, output A for even pins and B for odd.
func pwmSliceOf(pin hm01b0.Pin) (*pwmSlice, bool) {
	n := uintptr(pin>>1) & 7
	s := (*pwmSlice)(unsafe.Add(unsafe.Pointer(&rp.PWM.CH0_CSR), n*unsafe.Sizeof(pwmSlice{})))
	return s, pin&1 == 1
}

// rpClock generates the sensor master clock on a PWM slice with the
// fractional divider, which machine.PWM does not expose.
type rpClock struct{}

func (rpClock) Start(pin hm01b0.Pin, cfg hm01b0.ClockConfig) error {
	if _, err := pinOf(pin); err != nil {
		return err
	}
	s, chanB := pwmSliceOf(pin)
	s.CSR.ClearBits(pwmCSREnable)
	s.DIV.Set(uint32(cfg.DivInt)<<pwmDivIntShift | uint32(cfg.DivFrac&0xf))
	s.TOP.Set(uint32(cfg.Top))
	if chanB {
		s.CC.ReplaceBits(uint32(cfg.Level), 0xffff, pwmCCBShift)
	} else {
		s.CC.ReplaceBits(uint32(cfg.Level), 0xffff, 0)
	}
	s.CTR.Set(0)
	s.CSR.SetBits(pwmCSREnable)
	return nil
}

func (rpClock) Stop(pin hm01b0.Pin) error {
	if _, err := pinOf(pin); err != nil {
		return err
	}
	s, chanB := pwmSliceOf(pin)
	s.CSR.ClearBits(pwmCSREnable)
	if chanB {
		s.CC.ReplaceBits(0, 0xffff, pwmCCBShift)
	} else {
		s.CC.ReplaceBits(0, 0xffff, 0)
	}
	return nil
}
