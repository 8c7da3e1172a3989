//go:build !wasm

package serial

import (
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestPickPort(t *testing.T) {
	tests := []struct {
		name  string
		ports []*enumerator.PortDetails
		want  string
		err   error
	}{
		{
			name: "exact match",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
				{Name: "/dev/ttyACM0", IsUSB: true, VID: "2e8a", PID: "000a"},
			},
			want: "/dev/ttyACM0",
		},
		{
			name: "other product id",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyACM1", IsUSB: true, VID: "2E8A", PID: "0005"},
			},
			want: "/dev/ttyACM1",
		},
		{
			name: "exact match preferred",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyACM1", IsUSB: true, VID: "2E8A", PID: "0005"},
				{Name: "/dev/ttyACM2", IsUSB: true, VID: "2E8A", PID: "000A"},
			},
			want: "/dev/ttyACM2",
		},
		{
			name: "not usb",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyS0", VID: "2E8A", PID: "000A"},
			},
			err: ErrNoDevice,
		},
		{
			name: "empty",
			err:  ErrNoDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickPort(tt.ports)
			if !errors.Is(err, tt.err) {
				t.Fatalf("pickPort() error = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("pickPort() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Device != "/dev/ttyACM0" || cfg.Baud == 0 || cfg.ReadTimeout == 0 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
