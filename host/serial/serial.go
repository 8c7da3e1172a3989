// Package serial opens the USB CDC link to the camera firmware.
package serial

import (
	"io"
	"time"
)

// Port is a bidirectional byte stream to the firmware. A read that times
// out returns (0, nil).
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config selects the port and its line settings.
type Config struct {
	Device      string        // "/dev/ttyACM0", "COM3"; empty means Detect
	Baud        int           // ignored by USB CDC, required by the OS driver
	ReadTimeout time.Duration // zero blocks
}

// DefaultConfig returns the settings used by the host tools.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}
