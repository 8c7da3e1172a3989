//go:build !tinygo

package core

import "sync"

// State mirrors runtime/interrupt.State. On the host a mutex stands in
// for masking interrupts.
type State uintptr

var interruptMu sync.Mutex

func disableInterrupts() State {
	interruptMu.Lock()
	return 0
}

func restoreInterrupts(State) {
	interruptMu.Unlock()
}
