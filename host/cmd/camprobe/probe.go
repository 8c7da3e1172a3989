package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"periph.io/x/conn/v3/gpio"

	"picocam/hm01b0"
)

// probe runs one bring-up command against the sensor registers.
type probe struct {
	regs  *hm01b0.Registers
	reset gpio.PinOut // nil when the line is not wired
	sleep func(time.Duration)
	out   io.Writer
}

func (p *probe) printf(format string, args ...interface{}) {
	w := p.out
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, format, args...)
}

func parseNumber(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func (p *probe) run(args []string) error {
	wide := func(i int) bool { return len(args) > i && args[i] == "wide" }
	need := func(n int) error {
		if len(args) < n+1 {
			return fmt.Errorf("%s needs %d arguments", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "id":
		id, err := p.regs.Read16(hm01b0.RegModelIDH)
		if err != nil {
			return err
		}
		p.printf("model id 0x%04x\n", id)
		return hm01b0.CheckModelID(p.regs)

	case "reset":
		if p.reset != nil {
			if err := p.pulseReset(); err != nil {
				return err
			}
		}
		if err := hm01b0.SoftReset(p.regs, p.sleep); err != nil {
			return err
		}
		p.printf("sensor in standby\n")

	case "exposure":
		if err := need(1); err != nil {
			return err
		}
		lines, err := parseNumber(args[1], 32)
		if err != nil {
			return err
		}
		return hm01b0.WriteIntegration(p.regs, uint32(lines))

	case "peek":
		if err := need(1); err != nil {
			return err
		}
		reg, err := parseNumber(args[1], 16)
		if err != nil {
			return err
		}
		var v uint16
		if wide(2) {
			v, err = p.regs.Read16(uint16(reg))
		} else {
			var b uint8
			b, err = p.regs.Read8(uint16(reg))
			v = uint16(b)
		}
		if err != nil {
			return err
		}
		p.printf("0x%04x = 0x%02x\n", reg, v)

	case "poke":
		if err := need(2); err != nil {
			return err
		}
		reg, err := parseNumber(args[1], 16)
		if err != nil {
			return err
		}
		v, err := parseNumber(args[2], 16)
		if err != nil {
			return err
		}
		if wide(3) {
			return p.regs.Write16(uint16(reg), uint16(v))
		}
		if v > 0xff {
			return fmt.Errorf("value 0x%x does not fit a byte register", v)
		}
		return p.regs.Write8(uint16(reg), uint8(v))

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// pulseReset holds the reset line low for the same time the driver does.
func (p *probe) pulseReset() error {
	if err := p.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	p.sleep(100 * time.Millisecond)
	if err := p.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	return nil
}
