//go:build tinygo

package core

import "runtime/interrupt"

// The uptime counter is shared with interrupt handlers on the target.

func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
