package mcu

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"picocam/core"
	"picocam/hm01b0"
	"picocam/hm01b0/sim"
	"picocam/protocol"
)

var testPins = hm01b0.Pins{
	SDA: 4, SCL: 5,
	VSYNC: 6, HSYNC: 7, PCLK: 8, DataBase: 9,
	Reset: hm01b0.NoPin, MCLK: hm01b0.NoPin,
}

// startFirmware runs the camera firmware against a simulated sensor on
// the far end of a pipe, the way the RP2040 main loop does.
func startFirmware(t *testing.T) (*MCU, *sim.Rig) {
	t.Helper()
	core.InitCoreCommands()
	core.InitCameraCommands()
	core.GetGlobalDictionary().BuildDictionary()

	rig, cfg := sim.NewRig(testPins, 0, 0, 0)
	core.SetCameraHardware(cfg)

	hostEnd, mcuEnd := net.Pipe()
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, core.DispatchCommand)
	flush := func() {
		if len(out.Result()) == 0 {
			return
		}
		mcuEnd.Write(out.Result())
		out.Reset()
	}
	tr.SetFlushCallback(flush)
	core.SetGlobalTransport(tr)

	var mu sync.Mutex
	fifo := protocol.NewFifoBuffer(4096)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			mu.Lock()
			fifo.Write(buf[:n])
			mu.Unlock()
		}
	}()
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			mu.Lock()
			if fifo.Available() > 0 {
				tr.Receive(fifo)
			}
			mu.Unlock()
			flush()
			core.CameraTask(flush)
			time.Sleep(50 * time.Microsecond)
		}
	}()

	m := NewMCU(nil)
	m.Attach(hostEnd)
	t.Cleanup(func() {
		m.Close()
		close(stop)
		mcuEnd.Close()
		<-done
		core.ShutdownCamera()
		core.SetGlobalTransport(nil)
		core.ResetFirmwareState()
	})
	return m, rig
}

func connect(t *testing.T) (*MCU, *sim.Rig) {
	t.Helper()
	m, rig := startFirmware(t)
	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return m, rig
}

func TestRetrieveDictionary(t *testing.T) {
	m, _ := connect(t)

	d := m.GetDictionary()
	if d.Version != "picocam-"+core.Version {
		t.Errorf("Version = %q", d.Version)
	}
	if id := d.Responses["identify_response offset=%u data=%*s"]; id != 0 {
		t.Errorf("identify_response id = %d", id)
	}
	if id, ok := d.Commands["identify offset=%u count=%c"]; !ok || id != 1 {
		t.Errorf("identify id = %d (present %v)", id, ok)
	}
	if v, _ := m.Constant("CAMERA_SENSOR"); v != "hm01b0" {
		t.Errorf("CAMERA_SENSOR = %v", v)
	}
	if v, _ := m.Constant("CAMERA_CHUNK_SIZE"); v != float64(core.FrameChunkSize) {
		t.Errorf("CAMERA_CHUNK_SIZE = %v", v)
	}
	if m.BusBits() != 8 {
		t.Errorf("BusBits() = %d, expected 8", m.BusBits())
	}
	if len(m.GetDictionaryRaw()) <= identifyChunk {
		t.Errorf("Dictionary only %d bytes, expected several chunks", len(m.GetDictionaryRaw()))
	}

	var sb strings.Builder
	m.PrintDictionary(&sb)
	if !strings.Contains(sb.String(), "camera_capture") {
		t.Errorf("PrintDictionary output lacks camera_capture:\n%s", sb.String())
	}
}

func TestSendBeforeDictionary(t *testing.T) {
	m, _ := startFirmware(t)
	if err := m.Send("camera_capture"); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Send() error = %v, want %v", err, ErrNoDictionary)
	}

	unconnected := NewMCU(nil)
	if err := unconnected.Send("camera_capture"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() on unconnected MCU error = %v", err)
	}
}

func TestSendArguments(t *testing.T) {
	m, _ := connect(t)

	if err := m.Send("no_such_command"); !errors.Is(err, ErrUnknownName) {
		t.Errorf("Send(no_such_command) error = %v", err)
	}
	if err := m.Send("camera_configure", 160, 120); err == nil {
		t.Error("Send with missing argument succeeded")
	}
}

func TestUptimeAndConfig(t *testing.T) {
	m, _ := connect(t)

	if _, err := m.Uptime(); err != nil {
		t.Errorf("Uptime failed: %v", err)
	}
	down, err := m.Shutdown()
	if err != nil || down {
		t.Errorf("Shutdown() = %v, %v", down, err)
	}
}

func TestConfigureAndCapture(t *testing.T) {
	m, rig := connect(t)

	st, err := m.ConfigureCamera(160, 120, 8)
	if err != nil {
		t.Fatalf("ConfigureCamera failed: %v", err)
	}
	if !st.Configured || st.Width != 160 || st.Height != 120 {
		t.Errorf("Status = %+v", st)
	}
	// The firmware touches the sensor only while serving a command, and
	// its reply has been read, so the rig is quiescent here.
	if rig.Sensor.Streaming() {
		t.Error("Sensor streaming after configure, expected standby")
	}

	f, err := m.CaptureFrame(5 * time.Second)
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if f.Width != 160 || f.Height != 120 || len(f.Pix) != 160*120 {
		t.Fatalf("Frame %dx%d with %d bytes", f.Width, f.Height, len(f.Pix))
	}
	if rig.Sensor.Streaming() {
		t.Error("Sensor left streaming after capture")
	}

	img := f.Image()
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if got, want := img.GrayAt(x, y).Y, sim.Gradient(0, x, y); got != want {
				t.Fatalf("Pixel (%d,%d) = %d, expected %d", x, y, got, want)
			}
		}
	}

	if m.CameraMode() != (Mode{Width: 160, Height: 120, DataBits: 8}) {
		t.Errorf("CameraMode() = %+v", m.CameraMode())
	}
}

func TestConfigureErrors(t *testing.T) {
	testCases := []struct {
		name   string
		width  int
		height int
		bits   int
		code   uint8
	}{
		{"resolution", 100, 100, 8, core.CameraErrResolution},
		{"bit depth", 160, 120, 2, core.CameraErrBitDepth},
	}

	m, _ := connect(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := m.ConfigureCamera(tc.width, tc.height, tc.bits)
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tc.code {
				t.Fatalf("ConfigureCamera() error = %v, want code %d", err, tc.code)
			}
			if st.Configured {
				t.Error("Reported configured after failure")
			}
		})
	}
}

func TestCaptureNotConfigured(t *testing.T) {
	m, _ := connect(t)

	_, err := m.CaptureFrame(time.Second)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != core.CameraErrNotConfigured {
		t.Errorf("CaptureFrame() error = %v", err)
	}
}

func TestSetIntegration(t *testing.T) {
	m, rig := connect(t)

	if _, err := m.SetIntegration(100); err == nil {
		t.Error("SetIntegration before configure succeeded")
	}
	if _, err := m.ConfigureCamera(160, 120, 8); err != nil {
		t.Fatalf("ConfigureCamera failed: %v", err)
	}
	if _, err := m.SetIntegration(1000); err != nil {
		t.Fatalf("SetIntegration failed: %v", err)
	}
	if got := rig.Sensor.Register16(hm01b0.RegIntegrationH); got != 998 {
		t.Errorf("INTEGRATION = %d, expected 998", got)
	}

	if err := m.DeinitCamera(); err != nil {
		t.Fatalf("DeinitCamera failed: %v", err)
	}
	st, err := m.CameraStatus()
	if err != nil || st.Configured {
		t.Errorf("CameraStatus() after deinit = %+v, %v", st, err)
	}
}

func TestRegisters(t *testing.T) {
	m, rig := connect(t)

	id, err := m.ReadRegister(hm01b0.RegModelIDH, true)
	if err != nil || id != hm01b0.ModelID {
		t.Errorf("ReadRegister(model id) = %#x, %v", id, err)
	}
	if err := m.WriteRegister(0x3060, 0x08, false); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}
	if got := rig.Sensor.Register(0x3060); got != 0x08 {
		t.Errorf("Register 0x3060 = %#x", got)
	}
}

func TestEmergencyStop(t *testing.T) {
	m, _ := connect(t)

	if _, err := m.ConfigureCamera(160, 120, 8); err != nil {
		t.Fatalf("ConfigureCamera failed: %v", err)
	}
	if err := m.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop failed: %v", err)
	}
	if down, err := m.Shutdown(); err != nil || !down {
		t.Errorf("Shutdown() = %v, %v", down, err)
	}
	_, err := m.CaptureFrame(time.Second)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != core.CameraErrShutdown {
		t.Errorf("CaptureFrame() after stop error = %v", err)
	}
}
