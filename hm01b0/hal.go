package hm01b0

// Pin identifies a GPIO number on the host microcontroller.
type Pin int

// NoPin marks an optional pin (reset, master clock, bus lines) as not connected.
const NoPin Pin = -1

// Connected reports whether the pin is wired.
func (p Pin) Connected() bool {
	return p >= 0
}

// PinFunction selects the peripheral that owns a pin.
type PinFunction uint8

const (
	FuncNull PinFunction = iota // pin released, no peripheral
	FuncSIO                     // software controlled GPIO
	FuncI2C
	FuncPWM
	FuncPIO
)

// Pull selects the pad pull resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIO is the pin abstraction the driver uses to toggle reset and to hand
// pins over to the bus, clock and timing-program peripherals.
type GPIO interface {
	// ConfigureOutput configures a pin as a software driven output.
	ConfigureOutput(pin Pin) error

	// SetPin drives an output pin high (true) or low (false).
	SetPin(pin Pin, high bool) error

	// SetFunction assigns the pin to a peripheral, or releases it with FuncNull.
	SetFunction(pin Pin, fn PinFunction) error

	// SetPull configures the pad pull resistor.
	SetPull(pin Pin, pull Pull) error
}

// ClockConfig describes a square wave from a PWM-style clock generator:
//
//	f = sysclk / (DivInt + DivFrac/16) / (Top + 1)
//
// with the output high while the counter is below Level.
type ClockConfig struct {
	DivInt  uint8
	DivFrac uint8
	Top     uint16
	Level   uint16
}

// ClockGenerator supplies the sensor master clock.
type ClockGenerator interface {
	Start(pin Pin, cfg ClockConfig) error
	Stop(pin Pin) error
}

// Queue is a hardware FIFO that paces a block transfer. The data request
// line number is what the transfer engine waits on before each read.
type Queue interface {
	DREQ() uint8
}

// Executor runs a timing program on a signal-driven state machine.
type Executor interface {
	// Load installs the program and its state machine configuration.
	// It is called once per configured session.
	Load(p *Program) error

	// Unload frees the instruction memory taken by Load.
	Unload() error

	// Restart re-initialises the state machine at the start of the loaded
	// program with empty FIFOs. The machine is left disabled.
	Restart() error

	// SetEnabled starts or stops instruction execution.
	SetEnabled(enabled bool)

	// Put pushes a parameter word into the machine's input FIFO,
	// blocking while the FIFO is full.
	Put(v uint32)

	// Queue returns the machine's output FIFO.
	Queue() Queue
}

// Transfer configures one block transfer from a peripheral queue into memory.
// One byte is moved per queue entry, taken from the most significant byte
// of the queued word.
type Transfer struct {
	Src          Queue
	Dst          []byte
	SrcIncrement bool
	DstIncrement bool
}

// BlockTransfer hands out DMA-like channels.
type BlockTransfer interface {
	Claim() (Channel, error)
}

// Channel is one claimed block-transfer channel.
type Channel interface {
	Configure(t Transfer) error
	Start()
	// Wait blocks until len(Dst) bytes have been transferred. There is no
	// timeout.
	Wait()
	Release()
}
