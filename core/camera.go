package core

import (
	"errors"
	"strconv"
	"sync/atomic"

	"picocam/hm01b0"
	"picocam/protocol"
)

// Status codes carried by camera_status.
const (
	CameraOK uint8 = iota
	CameraErrResolution
	CameraErrBitDepth
	CameraErrModelID
	CameraErrResetTimeout
	CameraErrBus
	CameraErrNotConfigured
	CameraErrOther
	CameraErrShutdown
)

// FrameChunkSize is the number of pixel bytes per camera_frame_data
// message. Command id, offset and length prefix stay below the remaining
// payload space.
const FrameChunkSize = 48

var errShutdown = errors.New("camera: firmware is shut down")

type cameraState struct {
	hw    hm01b0.Config // collaborators and pins; geometry set per request
	hwSet bool
	dev   *hm01b0.Device
	frame []byte

	capturePending uint32 // atomic bool
}

var camera cameraState

// SetCameraHardware installs the bus, GPIO, clock, executor, transfer
// engine and wiring used by camera_configure. hw.DataBits is the number of
// data lines wired to the sensor, zero meaning all eight; Width and Height
// are ignored.
func SetCameraHardware(hw hm01b0.Config) {
	ShutdownCamera()
	if hw.DataBits == 0 {
		hw.DataBits = 8
	}
	camera.hw = hw
	camera.hwSet = true
	RegisterConstant("CAMERA_BUS_BITS", hw.DataBits)
}

// InitCameraCommands registers the camera commands, their responses and
// the sensor constants.
func InitCameraCommands() {
	RegisterCommand("camera_configure", "width=%hu height=%hu data_bits=%c", handleCameraConfigure)
	RegisterCommand("camera_get_status", "", handleCameraGetStatus)
	RegisterCommand("camera_capture", "", handleCameraCapture)
	RegisterCommand("camera_set_integration", "lines=%u", handleCameraSetIntegration)
	RegisterCommand("camera_deinit", "", handleCameraDeinit)

	RegisterResponse("camera_status", "configured=%c error=%c width=%hu height=%hu")
	RegisterResponse("camera_frame_begin", "width=%hu height=%hu length=%u")
	RegisterResponse("camera_frame_data", "offset=%u data=%*s")
	RegisterResponse("camera_frame_end", "crc=%hu")

	InitRegisterCommands()

	modes := ""
	for i, r := range hm01b0.SupportedModes() {
		if i > 0 {
			modes += ","
		}
		modes += strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
	}
	RegisterConstant("CAMERA_SENSOR", "hm01b0")
	RegisterConstant("CAMERA_MODES", modes)
	RegisterConstant("CAMERA_DATA_BITS", "1,4,8")
	RegisterConstant("CAMERA_CHUNK_SIZE", FrameChunkSize)
}

// CameraConfigured reports whether a sensor is configured and ready to
// capture.
func CameraConfigured() bool {
	return camera.dev != nil && camera.dev.Configured()
}

// ShutdownCamera releases the sensor and drops a pending capture.
func ShutdownCamera() {
	atomic.StoreUint32(&camera.capturePending, 0)
	if camera.dev != nil {
		camera.dev.Deinit()
		camera.dev = nil
	}
}

// CameraErrorCode maps a driver error to its camera_status code.
func CameraErrorCode(err error) uint8 {
	var busErr *hm01b0.BusError
	switch {
	case err == nil:
		return CameraOK
	case errors.Is(err, hm01b0.ErrUnsupportedResolution):
		return CameraErrResolution
	case errors.Is(err, hm01b0.ErrUnsupportedBitDepth):
		return CameraErrBitDepth
	case errors.Is(err, hm01b0.ErrUnexpectedModelID):
		return CameraErrModelID
	case errors.Is(err, hm01b0.ErrResetTimeout):
		return CameraErrResetTimeout
	case errors.As(err, &busErr):
		return CameraErrBus
	case errors.Is(err, hm01b0.ErrNotConfigured):
		return CameraErrNotConfigured
	case errors.Is(err, errShutdown):
		return CameraErrShutdown
	default:
		return CameraErrOther
	}
}

func sendCameraStatus(code uint8) {
	configured := CameraConfigured()
	var width, height int
	if configured {
		m := camera.dev.Mode()
		width, height = m.Width, m.Height
	}
	SendResponse("camera_status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(configured))
		protocol.EncodeVLQUint(output, uint32(code))
		protocol.EncodeVLQUint(output, uint32(width))
		protocol.EncodeVLQUint(output, uint32(height))
	})
}

// handleCameraConfigure (re)configures the sensor for the requested mode.
// data_bits=0 selects the wired bus width; wider requests are refused.
// Format: camera_configure width=%hu height=%hu data_bits=%c
func handleCameraConfigure(data *[]byte) error {
	width, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	height, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	bits, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if IsShutdown() {
		sendCameraStatus(CameraErrShutdown)
		return nil
	}
	if !camera.hwSet {
		sendCameraStatus(CameraErrOther)
		return nil
	}

	ShutdownCamera()
	wired := camera.hw.DataBits
	if bits == 0 {
		bits = uint32(wired)
	}
	if int(bits) > wired {
		DebugPrintln("[camera] " + utoa(bits) + " data bits requested, " + utoa(uint32(wired)) + " wired")
		sendCameraStatus(CameraErrBitDepth)
		return nil
	}

	cfg := camera.hw
	cfg.Width, cfg.Height, cfg.DataBits = int(width), int(height), int(bits)
	dev := hm01b0.New(cfg)
	err = dev.Configure()
	camera.dev = dev
	if err != nil {
		DebugPrintln("[camera] configure: " + err.Error())
		sendCameraStatus(CameraErrorCode(err))
		return nil
	}

	if n := dev.FrameSize(); cap(camera.frame) >= n {
		camera.frame = camera.frame[:n]
	} else {
		camera.frame = make([]byte, n)
	}
	DebugPrintln("[camera] configured " + utoa(width) + "x" + utoa(height) + " bits=" + utoa(bits))
	sendCameraStatus(CameraOK)
	return nil
}

func handleCameraGetStatus(data *[]byte) error {
	code := CameraOK
	if IsShutdown() {
		code = CameraErrShutdown
	}
	sendCameraStatus(code)
	return nil
}

// handleCameraCapture only marks the capture; CameraTask runs it from the
// main loop once the acknowledgement went out.
func handleCameraCapture(data *[]byte) error {
	switch {
	case IsShutdown():
		sendCameraStatus(CameraErrShutdown)
	case !CameraConfigured():
		sendCameraStatus(CameraErrNotConfigured)
	default:
		atomic.StoreUint32(&camera.capturePending, 1)
	}
	return nil
}

// Format: camera_set_integration lines=%u
func handleCameraSetIntegration(data *[]byte) error {
	lines, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if IsShutdown() {
		sendCameraStatus(CameraErrShutdown)
		return nil
	}
	if camera.dev == nil {
		sendCameraStatus(CameraErrNotConfigured)
		return nil
	}
	sendCameraStatus(CameraErrorCode(camera.dev.SetCoarseIntegration(lines)))
	return nil
}

func handleCameraDeinit(data *[]byte) error {
	ShutdownCamera()
	sendCameraStatus(CameraOK)
	return nil
}

// CameraTask runs a pending capture and streams the frame to the host:
// camera_frame_begin, camera_frame_data chunks, camera_frame_end with the
// CRC16 of the whole frame. flush is called after every message so the
// output buffer never holds more than one block.
func CameraTask(flush func()) {
	if !atomic.CompareAndSwapUint32(&camera.capturePending, 1, 0) {
		return
	}
	if !CameraConfigured() {
		sendCameraStatus(CameraErrNotConfigured)
		flush()
		return
	}

	frame := camera.frame
	if err := camera.dev.ReadFrame(frame); err != nil {
		DebugPrintln("[camera] capture: " + err.Error())
		sendCameraStatus(CameraErrorCode(err))
		flush()
		return
	}

	m := camera.dev.Mode()
	SendResponse("camera_frame_begin", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(m.Width))
		protocol.EncodeVLQUint(output, uint32(m.Height))
		protocol.EncodeVLQUint(output, uint32(len(frame)))
	})
	flush()

	for off := 0; off < len(frame); off += FrameChunkSize {
		end := off + FrameChunkSize
		if end > len(frame) {
			end = len(frame)
		}
		chunk := frame[off:end]
		SendResponse("camera_frame_data", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(off))
			protocol.EncodeVLQBytes(output, chunk)
		})
		flush()
	}

	crc := protocol.CRC16(frame)
	SendResponse("camera_frame_end", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(crc))
	})
	flush()
}
