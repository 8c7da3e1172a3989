// Package board describes how an HM01B0 is wired to an RP2040 board.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"picocam/hm01b0"
)

// NumGPIO is the number of user GPIOs on the RP2040.
const NumGPIO = 30

// Config is a board description. Pins are named "gpioN"; an empty string
// or "none" marks an optional pin as not connected.
type Config struct {
	Name string `json:"name"`

	I2CBus       int    `json:"i2c_bus"`
	I2CFrequency uint32 `json:"i2c_frequency"`
	SDAPin       string `json:"sda_pin"`
	SCLPin       string `json:"scl_pin"`

	VSYNCPin    string `json:"vsync_pin"`
	HSYNCPin    string `json:"hsync_pin"`
	PCLKPin     string `json:"pclk_pin"`
	DataPinBase string `json:"data_pin_base"`
	DataBits    int    `json:"data_bits"`

	PIO             int `json:"pio"`
	PIOStateMachine int `json:"pio_sm"`

	ResetPin string `json:"reset_pin"`
	MCLKPin  string `json:"mclk_pin"`

	Width  int `json:"width"`
	Height int `json:"height"`
}

// Load parses a JSON board description and fills in defaults.
func Load(jsonData []byte) (*Config, error) {
	var config Config

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

// applyDefaults fills in missing values
func applyDefaults(config *Config) {
	if config.Name == "" {
		config.Name = "custom"
	}

	// Default I2C0 pins on the Pico
	if config.SDAPin == "" {
		config.SDAPin = "gpio4"
	}
	if config.SCLPin == "" {
		config.SCLPin = "gpio5"
	}
	if config.I2CFrequency == 0 {
		config.I2CFrequency = 100000 // 100kHz
	}

	if config.DataBits == 0 {
		config.DataBits = 8
	}
	if config.Width == 0 && config.Height == 0 {
		config.Width = 160
		config.Height = 120
	}
}

// ParsePin converts "gpioN" (or a bare number) to a pin. Empty and "none"
// give hm01b0.NoPin.
func ParsePin(name string) (hm01b0.Pin, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" || s == "none" {
		return hm01b0.NoPin, nil
	}
	s = strings.TrimPrefix(s, "gpio")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= NumGPIO {
		return hm01b0.NoPin, fmt.Errorf("board: invalid pin %q", name)
	}
	return hm01b0.Pin(n), nil
}

// Pins resolves the pin names.
func (c *Config) Pins() (hm01b0.Pins, error) {
	var p hm01b0.Pins
	fields := []struct {
		name string
		val  string
		dst  *hm01b0.Pin
	}{
		{"sda_pin", c.SDAPin, &p.SDA},
		{"scl_pin", c.SCLPin, &p.SCL},
		{"vsync_pin", c.VSYNCPin, &p.VSYNC},
		{"hsync_pin", c.HSYNCPin, &p.HSYNC},
		{"pclk_pin", c.PCLKPin, &p.PCLK},
		{"data_pin_base", c.DataPinBase, &p.DataBase},
		{"reset_pin", c.ResetPin, &p.Reset},
		{"mclk_pin", c.MCLKPin, &p.MCLK},
	}
	for _, f := range fields {
		pin, err := ParsePin(f.val)
		if err != nil {
			return hm01b0.Pins{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = pin
	}
	return p, nil
}

// Validate checks that the description can drive a sensor: the requested
// mode exists, required pins are present and no pin is used twice.
func (c *Config) Validate() error {
	if _, err := hm01b0.ResolveMode(c.Width, c.Height, c.DataBits); err != nil {
		return err
	}
	if c.I2CBus != 0 && c.I2CBus != 1 {
		return fmt.Errorf("board: invalid i2c_bus %d", c.I2CBus)
	}
	if c.PIO != 0 && c.PIO != 1 {
		return fmt.Errorf("board: invalid pio %d", c.PIO)
	}
	if c.PIOStateMachine < 0 || c.PIOStateMachine > 3 {
		return fmt.Errorf("board: invalid pio_sm %d", c.PIOStateMachine)
	}

	p, err := c.Pins()
	if err != nil {
		return err
	}
	for name, pin := range map[string]hm01b0.Pin{"sda_pin": p.SDA, "scl_pin": p.SCL, "vsync_pin": p.VSYNC, "hsync_pin": p.HSYNC, "pclk_pin": p.PCLK, "data_pin_base": p.DataBase} {
		if !pin.Connected() {
			return fmt.Errorf("board: %s is required", name)
		}
	}
	if int(p.DataBase)+c.DataBits > NumGPIO {
		return fmt.Errorf("board: %d data pins from gpio%d exceed the GPIO range", c.DataBits, p.DataBase)
	}

	used := make(map[hm01b0.Pin]bool)
	for i := 0; i < c.DataBits; i++ {
		used[p.DataBase+hm01b0.Pin(i)] = true
	}
	for _, pin := range []hm01b0.Pin{p.SDA, p.SCL, p.VSYNC, p.HSYNC, p.PCLK, p.Reset, p.MCLK} {
		if !pin.Connected() {
			continue
		}
		if used[pin] {
			return fmt.Errorf("%w: gpio%d", ErrPinConflict, pin)
		}
		used[pin] = true
	}
	return nil
}

// ErrPinConflict is returned by Validate when two functions share a pin.
var ErrPinConflict = errors.New("board: pin assigned twice")

// Pico is the Raspberry Pi Pico wiring with a one bit data bus. Reset and
// master clock are provided by the camera module.
func Pico() *Config {
	return &Config{
		Name:         "pico",
		I2CBus:       0,
		I2CFrequency: 100000,
		SDAPin:       "gpio4",
		SCLPin:       "gpio5",
		VSYNCPin:     "gpio6",
		HSYNCPin:     "gpio7",
		PCLKPin:      "gpio8",
		DataPinBase:  "gpio9",
		DataBits:     1,
		ResetPin:     "none",
		MCLKPin:      "none",
		Width:        160,
		Height:       120,
	}
}

// SparkfunMicroMod is the SparkFun MicroMod RP2040 with the HM01B0 camera
// carrier: eight data lines, reset and master clock driven by the MCU.
func SparkfunMicroMod() *Config {
	return &Config{
		Name:         "sparkfun_micromod",
		I2CBus:       0,
		I2CFrequency: 100000,
		SDAPin:       "gpio4",
		SCLPin:       "gpio5",
		VSYNCPin:     "gpio25",
		HSYNCPin:     "gpio28",
		PCLKPin:      "gpio11",
		DataPinBase:  "gpio16",
		DataBits:     8,
		ResetPin:     "gpio24",
		MCLKPin:      "gpio10",
		Width:        160,
		Height:       120,
	}
}

// ByName returns a copy of a built-in board.
func ByName(name string) (*Config, bool) {
	switch strings.ToLower(name) {
	case "pico", "":
		return Pico(), true
	case "sparkfun_micromod", "micromod":
		return SparkfunMicroMod(), true
	}
	return nil, false
}
