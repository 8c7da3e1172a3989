//go:build rp2040

package main

import (
	"machine"

	"picocam/core"
)

// debugOutput enables the debug UART: -ldflags "-X main.debugOutput=uart".
var debugOutput string

// InitDebugUART routes core debug output to UART0 on GPIO0 (TX) and
// GPIO1 (RX) at 115200 baud. Neither board preset uses those pins.
func InitDebugUART() {
	if debugOutput != "uart" {
		return
	}
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	core.DebugPrintln("=== picocam debug UART ===")
}
