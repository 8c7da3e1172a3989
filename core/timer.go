package core

import "sync/atomic"

// TimerFreq is the rate of the tick counter fed to SetTime (the RP2040
// microsecond timer).
const TimerFreq = 1000000

var (
	systemTicks atomic.Uint32
	lastTicks   uint32
	uptimeHigh  uint32 // wraps of the 32-bit tick counter
)

// GetTime returns the current time in timer ticks.
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime publishes the hardware tick counter. It must be called more than
// once per counter wrap (about 71 minutes at 1MHz) for GetUptime to stay
// monotonic.
func SetTime(ticks uint32) {
	state := disableInterrupts()
	if ticks < lastTicks {
		uptimeHigh++
	}
	lastTicks = ticks
	systemTicks.Store(ticks)
	restoreInterrupts(state)
}

// GetUptime returns the 64-bit tick count since boot.
func GetUptime() uint64 {
	state := disableInterrupts()
	up := uint64(uptimeHigh)<<32 | uint64(lastTicks)
	restoreInterrupts(state)
	return up
}

func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit resets the uptime bookkeeping.
func TimerInit() {
	state := disableInterrupts()
	lastTicks, uptimeHigh = 0, 0
	systemTicks.Store(0)
	restoreInterrupts(state)
}
