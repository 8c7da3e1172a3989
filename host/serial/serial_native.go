//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tarm/serial"
	"go.bug.st/serial/enumerator"
)

// USB identifiers of the RP2040 TinyGo CDC device.
const (
	VendorID  = "2E8A"
	ProductID = "000A"
)

// ErrNoDevice is returned by Detect when no camera board is attached.
var ErrNoDevice = errors.New("serial: no RP2040 device found")

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		dev, err := Detect()
		if err != nil {
			return nil, err
		}
		cfg.Device = dev
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Detect returns the name of the first USB serial port with the RP2040
// vendor id.
func Detect() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("serial: enumerate ports: %w", err)
	}
	return pickPort(ports)
}

func pickPort(ports []*enumerator.PortDetails) (string, error) {
	var fallback string
	for _, p := range ports {
		if !p.IsUSB || !strings.EqualFold(p.VID, VendorID) {
			continue
		}
		if strings.EqualFold(p.PID, ProductID) {
			return p.Name, nil
		}
		if fallback == "" {
			fallback = p.Name
		}
	}
	if fallback == "" {
		return "", ErrNoDevice
	}
	return fallback, nil
}

// Read reads data from the serial port. A read timeout with nothing
// received is reported as zero bytes, not as end of stream.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards anything received but not yet read.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
