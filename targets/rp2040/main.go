//go:build rp2040

package main

import (
	"machine"
	"strconv"
	"time"

	"picocam/board"
	"picocam/core"
	"picocam/hm01b0"
	"picocam/protocol"
)

// boardName selects the wiring preset: -ldflags "-X main.boardName=micromod".
var boardName = "pico"

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog left armed by a reset request.
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitUSB()
	InitDebugUART()
	InitClock()

	core.InitCoreCommands()
	core.InitCameraCommands()
	registerRP2040Pins()

	b, ok := board.ByName(boardName)
	if !ok {
		b = board.Pico()
	}
	core.RegisterConstant("BOARD", b.Name)
	if err := setupCamera(b); err != nil {
		core.DebugPrintln("[main] camera hardware: " + err.Error())
	}

	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// Acknowledgements go out before any response queued behind them.
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
		machine.Watchdog.Start()
		for {
			time.Sleep(time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}
			writeUSB()

			core.CheckPendingReset()

			// Blocks for a whole frame; the reader goroutine keeps
			// buffering host input meanwhile.
			core.CameraTask(writeUSB)
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// setupCamera builds the driver collaborators for the board wiring.
func setupCamera(b *board.Config) error {
	if err := b.Validate(); err != nil {
		return err
	}
	pins, err := b.Pins()
	if err != nil {
		return err
	}
	bus, err := configureI2C(b)
	if err != nil {
		return err
	}
	core.SetCameraHardware(hm01b0.Config{
		Bus:      bus,
		GPIO:     newGPIO(b.PIO),
		Clock:    rpClock{},
		Executor: newPIOExecutor(uint8(b.PIO), uint8(b.PIOStateMachine)),
		DMA:      newDMA(),
		Pins:     pins,
		DataBits: b.DataBits,
	})
	return nil
}

func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	var buf [64]byte
	for {
		if USBAvailable() > 0 {
			n := USBRead(buf[:])
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				consecutiveWriteFailures = 0
			}
			if written := inputBuffer.Write(buf[:n]); written < n {
				msgerrors++
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// registerRP2040Pins publishes the gpioN names used in board files.
func registerRP2040Pins() {
	names := make([]string, board.NumGPIO)
	for i := range names {
		names[i] = "gpio" + strconv.Itoa(i)
	}
	core.RegisterEnumeration("pin", names)
}

// writeUSB sends the output buffer. After repeated failures the link is
// treated as disconnected and the stale output dropped.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
