// Command camprobe talks to an HM01B0 wired straight to a Linux board
// (a Raspberry Pi for example) for bring-up without the firmware.
//
// Usage:
//
//	camprobe [flags] id
//	camprobe [flags] reset
//	camprobe [flags] exposure LINES
//	camprobe [flags] peek REG [wide]
//	camprobe [flags] poke REG VALUE [wide]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"picocam/hm01b0"
)

var (
	busName  = flag.String("i2c", "", "I2C bus name (empty for default)")
	busHz    = flag.Int("hz", 400000, "I2C clock in Hz")
	resetPin = flag.String("reset", "", "GPIO wired to the sensor reset line (empty if not connected)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] id|reset|exposure LINES|peek REG [wide]|poke REG VALUE [wide]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

// run opens the bus and reset line and executes one subcommand. The bus is
// closed on every path.
func run(args []string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialize periph.io: %w", err)
	}

	bus, err := i2creg.Open(*busName)
	if err != nil {
		return fmt.Errorf("open I2C bus: %w", err)
	}
	defer bus.Close()
	if err := bus.SetSpeed(physic.Frequency(*busHz) * physic.Hertz); err != nil {
		return fmt.Errorf("set bus speed: %w", err)
	}

	var rst gpio.PinOut
	if *resetPin != "" {
		p := gpioreg.ByName(*resetPin)
		if p == nil {
			return fmt.Errorf("GPIO pin %s not found", *resetPin)
		}
		rst = p
	}

	p := &probe{regs: hm01b0.NewRegisters(bus), reset: rst, sleep: time.Sleep}
	return p.run(args)
}
