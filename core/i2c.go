package core

import (
	"picocam/hm01b0"
	"picocam/protocol"
)

// Register access for bring-up and tuning. These go straight to the
// sensor on the camera bus, configured or not.

// InitRegisterCommands registers camera_read_register and
// camera_write_register with their shared response.
func InitRegisterCommands() {
	RegisterCommand("camera_read_register", "reg=%hu wide=%c", handleReadRegister)
	RegisterCommand("camera_write_register", "reg=%hu value=%hu wide=%c", handleWriteRegister)
	RegisterResponse("camera_register", "reg=%hu value=%hu error=%c")
}

func cameraRegisters() *hm01b0.Registers {
	if camera.dev != nil {
		return camera.dev.Registers()
	}
	if camera.hwSet && camera.hw.Bus != nil {
		return hm01b0.NewRegisters(camera.hw.Bus)
	}
	return nil
}

func sendRegister(reg uint16, value uint16, err error) {
	code := CameraErrorCode(err)
	SendResponse("camera_register", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(reg))
		protocol.EncodeVLQUint(output, uint32(value))
		protocol.EncodeVLQUint(output, uint32(code))
	})
}

// Format: camera_read_register reg=%hu wide=%c
func handleReadRegister(data *[]byte) error {
	reg, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	wide, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	r := cameraRegisters()
	if r == nil {
		sendRegister(uint16(reg), 0, hm01b0.ErrNotConfigured)
		return nil
	}

	var value uint16
	if wide != 0 {
		value, err = r.Read16(uint16(reg))
	} else {
		var v uint8
		v, err = r.Read8(uint16(reg))
		value = uint16(v)
	}
	if err != nil {
		DebugPrintln("[camera] read " + hex16(uint16(reg)) + ": " + err.Error())
	}
	sendRegister(uint16(reg), value, err)
	return nil
}

// Format: camera_write_register reg=%hu value=%hu wide=%c
func handleWriteRegister(data *[]byte) error {
	reg, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	wide, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if IsShutdown() {
		sendRegister(uint16(reg), 0, errShutdown)
		return nil
	}
	r := cameraRegisters()
	if r == nil {
		sendRegister(uint16(reg), 0, hm01b0.ErrNotConfigured)
		return nil
	}

	if wide != 0 {
		err = r.Write16(uint16(reg), uint16(value))
	} else {
		err = r.Write8(uint16(reg), uint8(value))
	}
	if err != nil {
		DebugPrintln("[camera] write " + hex16(uint16(reg)) + ": " + err.Error())
	}
	sendRegister(uint16(reg), uint16(value), err)
	return nil
}
