//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures the USB CDC-ACM port (machine.Serial on the RP2040).
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes waiting in the USB receive buffer.
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads whatever is buffered, up to len(buf) bytes.
func USBRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// USBWriteBytes writes data to the host.
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
