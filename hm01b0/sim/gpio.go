package sim

import (
	"strconv"
	"time"

	"picocam/hm01b0"
)

// GPIO records what the driver does with its pins.
type GPIO struct {
	Function map[hm01b0.Pin]hm01b0.PinFunction
	Level    map[hm01b0.Pin]bool
	Pull     map[hm01b0.Pin]hm01b0.Pull
	Outputs  map[hm01b0.Pin]bool

	// Events is a human readable trace, e.g. "set 24 low".
	Events []string

	// Fail, when set, makes every call return it.
	Fail error
}

func NewGPIO() *GPIO {
	return &GPIO{
		Function: make(map[hm01b0.Pin]hm01b0.PinFunction),
		Level:    make(map[hm01b0.Pin]bool),
		Pull:     make(map[hm01b0.Pin]hm01b0.Pull),
		Outputs:  make(map[hm01b0.Pin]bool),
	}
}

func (g *GPIO) ConfigureOutput(pin hm01b0.Pin) error {
	if g.Fail != nil {
		return g.Fail
	}
	g.Outputs[pin] = true
	g.Function[pin] = hm01b0.FuncSIO
	g.Events = append(g.Events, "output "+strconv.Itoa(int(pin)))
	return nil
}

func (g *GPIO) SetPin(pin hm01b0.Pin, high bool) error {
	if g.Fail != nil {
		return g.Fail
	}
	g.Level[pin] = high
	lvl := "low"
	if high {
		lvl = "high"
	}
	g.Events = append(g.Events, "set "+strconv.Itoa(int(pin))+" "+lvl)
	return nil
}

func (g *GPIO) SetFunction(pin hm01b0.Pin, fn hm01b0.PinFunction) error {
	if g.Fail != nil {
		return g.Fail
	}
	g.Function[pin] = fn
	g.Events = append(g.Events, "func "+strconv.Itoa(int(pin))+" "+funcNames[fn])
	return nil
}

func (g *GPIO) SetPull(pin hm01b0.Pin, pull hm01b0.Pull) error {
	if g.Fail != nil {
		return g.Fail
	}
	g.Pull[pin] = pull
	return nil
}

var funcNames = map[hm01b0.PinFunction]string{
	hm01b0.FuncNull: "null",
	hm01b0.FuncSIO:  "sio",
	hm01b0.FuncI2C:  "i2c",
	hm01b0.FuncPWM:  "pwm",
	hm01b0.FuncPIO:  "pio",
}

// Clock records master clock activity.
type Clock struct {
	Running map[hm01b0.Pin]hm01b0.ClockConfig
	Starts  int
	Stops   int
}

func NewClock() *Clock {
	return &Clock{Running: make(map[hm01b0.Pin]hm01b0.ClockConfig)}
}

func (c *Clock) Start(pin hm01b0.Pin, cfg hm01b0.ClockConfig) error {
	c.Running[pin] = cfg
	c.Starts++
	return nil
}

func (c *Clock) Stop(pin hm01b0.Pin) error {
	delete(c.Running, pin)
	c.Stops++
	return nil
}

// Rig is a fully wired simulated camera.
type Rig struct {
	Sensor *Sensor
	Exec   *Executor
	DMA    *DMA
	GPIO   *GPIO
	Clock  *Clock
	Sleeps int
}

// NewRig wires a sensor, executor, transfer engine, GPIO and clock for
// pins and returns a driver configuration using them. Sleeping is counted
// instead of performed.
func NewRig(pins hm01b0.Pins, width, height, dataBits int) (*Rig, hm01b0.Config) {
	r := &Rig{
		Sensor: NewSensor(pins.Capture()),
		GPIO:   NewGPIO(),
		Clock:  NewClock(),
	}
	r.Exec = NewExecutor(r.Sensor)
	r.DMA = NewDMA(r.Exec)
	cfg := hm01b0.Config{
		Bus:      r.Sensor,
		GPIO:     r.GPIO,
		Clock:    r.Clock,
		Executor: r.Exec,
		DMA:      r.DMA,
		Sleep:    func(time.Duration) { r.Sleeps++ },
		Pins:     pins,
		DataBits: dataBits,
		Width:    width,
		Height:   height,
	}
	return r, cfg
}
