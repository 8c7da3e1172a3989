package core

import (
	"sync/atomic"

	"picocam/protocol"
)

// Version of the firmware command set.
const Version = "0.3.0"

type firmwareState struct {
	isShutdown uint32 // atomic bool
}

var globalState firmwareState

// InitCoreCommands registers the protocol level commands.
//
// identify_response and identify must be ids 0 and 1: the host uses them
// before it has a dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c is_shutdown=%c")

	RegisterConstant("VERSION", Version)
	RegisterConstant("RECEIVE_WINDOW", uint32(protocol.FrameMax))
}

// handleIdentify sends one chunk of the dictionary.
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetConfig(data *[]byte) error {
	isConfig := CameraConfigured()
	isShutdown := IsShutdown()
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(isConfig))
		protocol.EncodeVLQUint(output, boolArg(isShutdown))
	})
	return nil
}

// handleEmergencyStop releases the sensor and refuses further camera
// commands until the host restarts the link.
func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency stop")
	return nil
}

// TryShutdown puts the firmware in shutdown state.
func TryShutdown(reason string) {
	atomic.StoreUint32(&globalState.isShutdown, 1)
	ShutdownCamera()
	DebugPrintln("[shutdown] " + reason)
}

func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState clears the shutdown flag. Called when the host
// reconnects.
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.isShutdown, 0)
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

var globalTransport *protocol.Transport

// SetGlobalTransport sets the transport used by SendResponse.
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse frames a registered response on the global transport. It
// panics for unregistered names.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

var (
	globalResetHandler func()
	resetPending       uint32 // atomic bool
)

// SetResetHandler sets the platform reset (watchdog on the RP2040).
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset defers the reset to the main loop so the acknowledgement
// reaches the host first.
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler if a reset was requested. Call
// it after the output buffer was flushed.
func CheckPendingReset() {
	if !atomic.CompareAndSwapUint32(&resetPending, 1, 0) {
		return
	}
	ShutdownCamera()
	if globalResetHandler != nil {
		globalResetHandler()
	}
}
