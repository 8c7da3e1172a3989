package hm01b0

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedResolution = errors.New("hm01b0: unsupported resolution")
	ErrUnsupportedBitDepth   = errors.New("hm01b0: unsupported data bus width")
	ErrUnexpectedModelID     = errors.New("hm01b0: unexpected model id")
	ErrResetTimeout          = errors.New("hm01b0: sensor did not return to standby after reset")
	ErrNotConfigured         = errors.New("hm01b0: device not configured")
	ErrProgramRange          = errors.New("hm01b0: timing program operand out of range")
)

// BusError reports a failed register transaction on the two-wire bus.
type BusError struct {
	Op   string // "read" or "write"
	Addr uint16
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("hm01b0: %s register 0x%04x: %v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// ModelIDError carries the identifier read back from a part that is not an HM01B0.
type ModelIDError struct {
	Got uint16
}

func (e *ModelIDError) Error() string {
	return fmt.Sprintf("hm01b0: unexpected model id 0x%04x (want 0x%04x)", e.Got, ModelID)
}

func (e *ModelIDError) Is(target error) bool {
	return target == ErrUnexpectedModelID
}
