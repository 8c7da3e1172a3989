//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"picocam/core"
)

// RP2040 timer registers
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // raw low word, no latching
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock publishes the timer constants. The RP2040 timer is a 64-bit
// microsecond counter running from boot.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.TimerFreq))
	core.TimerInit()
	UpdateSystemTime()
}

// GetHardwareTime returns the low 32 bits of the microsecond counter.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime feeds the hardware counter to core. Called every main
// loop pass.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
