package mcu

import (
	"errors"
	"fmt"
	"image"
	"time"

	"picocam/core"
	"picocam/protocol"
)

// ErrFrameCorrupt is returned when a streamed frame has gaps, the wrong
// length or a bad checksum.
var ErrFrameCorrupt = errors.New("mcu: corrupt frame")

// StatusError is a non-zero camera_status or camera_register code.
type StatusError struct {
	Code uint8
}

var statusNames = map[uint8]string{
	core.CameraErrResolution:    "unsupported resolution",
	core.CameraErrBitDepth:      "unsupported bit depth",
	core.CameraErrModelID:       "unexpected model id",
	core.CameraErrResetTimeout:  "reset timeout",
	core.CameraErrBus:           "bus error",
	core.CameraErrNotConfigured: "not configured",
	core.CameraErrOther:         "camera error",
	core.CameraErrShutdown:      "firmware shut down",
}

func (e *StatusError) Error() string {
	if s, ok := statusNames[e.Code]; ok {
		return "camera: " + s
	}
	return fmt.Sprintf("camera: status %d", e.Code)
}

func statusErr(code uint8) error {
	if code == core.CameraOK {
		return nil
	}
	return &StatusError{Code: code}
}

// Status is a decoded camera_status message.
type Status struct {
	Configured bool
	Code       uint8
	Width      int
	Height     int
}

// Err returns the error carried by the status, if any.
func (s Status) Err() error { return statusErr(s.Code) }

func statusOf(r *Response) Status {
	return Status{
		Configured: r.Uint("configured") != 0,
		Code:       uint8(r.Uint("error")),
		Width:      int(r.Uint("width")),
		Height:     int(r.Uint("height")),
	}
}

// Mode is the output format the host asked for.
type Mode struct {
	Width, Height, DataBits int
}

// Frame is one captured image, one byte per pixel, row major.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Image wraps the pixels without copying.
func (f *Frame) Image() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

func (m *MCU) status(cmd string, timeout time.Duration, args ...int64) (Status, error) {
	r, err := m.Query(cmd, "camera_status", timeout, args...)
	if err != nil {
		return Status{}, err
	}
	st := statusOf(r)
	return st, st.Err()
}

// ConfigureCamera powers up and configures the sensor. Bring-up includes
// a soft reset poll, so the firmware gets a few seconds. dataBits 0 uses
// every data line the board wires up.
func (m *MCU) ConfigureCamera(width, height, dataBits int) (Status, error) {
	if dataBits == 0 {
		dataBits = m.BusBits()
	}
	st, err := m.status("camera_configure", 5*time.Second, int64(width), int64(height), int64(dataBits))
	if err == nil {
		m.mode = Mode{Width: width, Height: height, DataBits: dataBits}
	}
	return st, err
}

// CameraStatus asks for the current camera state.
func (m *MCU) CameraStatus() (Status, error) {
	return m.status("camera_get_status", time.Second)
}

// SetIntegration sets the coarse integration time in lines.
func (m *MCU) SetIntegration(lines uint32) (Status, error) {
	return m.status("camera_set_integration", time.Second, int64(lines))
}

// DeinitCamera stops streaming and releases the sensor.
func (m *MCU) DeinitCamera() error {
	_, err := m.status("camera_deinit", time.Second)
	m.mode = Mode{}
	return err
}

// BusBits is the data bus width the board wires up, or 0 if the firmware
// does not say.
func (m *MCU) BusBits() int {
	v, ok := m.Constant("CAMERA_BUS_BITS")
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return int(f)
}

// CameraMode is the mode of the last successful ConfigureCamera.
func (m *MCU) CameraMode() Mode { return m.mode }

// CaptureFrame requests one frame and reassembles the streamed chunks.
func (m *MCU) CaptureFrame(timeout time.Duration) (*Frame, error) {
	m.drain()
	if err := m.Send("camera_capture"); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)

	r, err := m.await(deadline, "camera_frame_begin", "camera_status")
	if err != nil {
		return nil, err
	}
	if r.Name == "camera_status" {
		if err := statusOf(r).Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status before frame", ErrFrameCorrupt)
	}

	length := int(r.Uint("length"))
	f := &Frame{
		Width:  int(r.Uint("width")),
		Height: int(r.Uint("height")),
		Pix:    make([]byte, 0, length),
	}
	if f.Width*f.Height != length {
		return nil, fmt.Errorf("%w: %dx%d frame announced with %d bytes", ErrFrameCorrupt, f.Width, f.Height, length)
	}

	for {
		r, err := m.await(deadline, "camera_frame_data", "camera_frame_end", "camera_status")
		if err != nil {
			return nil, err
		}
		switch r.Name {
		case "camera_frame_data":
			off := int(r.Uint("offset"))
			if off != len(f.Pix) {
				return nil, fmt.Errorf("%w: chunk at %d, expected %d", ErrFrameCorrupt, off, len(f.Pix))
			}
			data := r.Buffers["data"]
			if len(f.Pix)+len(data) > length {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrFrameCorrupt, length)
			}
			f.Pix = append(f.Pix, data...)
		case "camera_frame_end":
			if len(f.Pix) != length {
				return nil, fmt.Errorf("%w: %d of %d bytes", ErrFrameCorrupt, len(f.Pix), length)
			}
			if crc := protocol.CRC16(f.Pix); uint32(crc) != r.Uint("crc") {
				return nil, fmt.Errorf("%w: crc %04x, firmware sent %04x", ErrFrameCorrupt, crc, r.Uint("crc"))
			}
			return f, nil
		default:
			if err := statusOf(r).Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: status inside frame", ErrFrameCorrupt)
		}
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ReadRegister reads one sensor register, or a big endian pair when wide.
func (m *MCU) ReadRegister(reg uint16, wide bool) (uint16, error) {
	r, err := m.Query("camera_read_register", "camera_register", time.Second, int64(reg), b2i(wide))
	if err != nil {
		return 0, err
	}
	if err := statusErr(uint8(r.Uint("error"))); err != nil {
		return 0, err
	}
	return uint16(r.Uint("value")), nil
}

// WriteRegister writes one sensor register, or a big endian pair when
// wide.
func (m *MCU) WriteRegister(reg, value uint16, wide bool) error {
	r, err := m.Query("camera_write_register", "camera_register", time.Second, int64(reg), int64(value), b2i(wide))
	if err != nil {
		return err
	}
	return statusErr(uint8(r.Uint("error")))
}
