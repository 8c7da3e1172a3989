package hm01b0

import (
	"encoding/binary"

	"tinygo.org/x/drivers"
)

// Registers implements the HM01B0 register protocol on a two-wire bus.
//
// Register addresses are 16 bits and always sent most significant byte
// first. A read is a single combined transaction: the address is written
// and the value read back after a repeated start.
type Registers struct {
	bus drivers.I2C
	buf [4]byte
}

// NewRegisters returns a register accessor for the sensor on bus.
func NewRegisters(bus drivers.I2C) *Registers {
	return &Registers{bus: bus}
}

// Read8 reads an 8-bit register.
func (r *Registers) Read8(addr uint16) (uint8, error) {
	w, rd := r.buf[:2], r.buf[2:3]
	binary.BigEndian.PutUint16(w, addr)
	if err := r.bus.Tx(Address, w, rd); err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}
	return rd[0], nil
}

// Read16 reads a register pair, high byte at addr.
func (r *Registers) Read16(addr uint16) (uint16, error) {
	w, rd := r.buf[:2], r.buf[2:4]
	binary.BigEndian.PutUint16(w, addr)
	if err := r.bus.Tx(Address, w, rd); err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}
	return binary.BigEndian.Uint16(rd), nil
}

// Write8 writes an 8-bit register.
func (r *Registers) Write8(addr uint16, v uint8) error {
	w := r.buf[:3]
	binary.BigEndian.PutUint16(w, addr)
	w[2] = v
	if err := r.bus.Tx(Address, w, nil); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// Write16 writes a register pair, high byte at addr.
func (r *Registers) Write16(addr uint16, v uint16) error {
	w := r.buf[:4]
	binary.BigEndian.PutUint16(w, addr)
	binary.BigEndian.PutUint16(w[2:], v)
	if err := r.bus.Tx(Address, w, nil); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}
