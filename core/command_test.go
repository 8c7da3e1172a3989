package core

import (
	"errors"
	"testing"

	"picocam/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("Failed to retrieve registered command: %+v", cmd)
	}
	if cmd.Signature() != "test_command arg=%u" {
		t.Errorf("Unexpected signature %q", cmd.Signature())
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryIDs(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("response1", "value=%u", nil)
	id3 := registry.Register("command1", "other=%c", nil)

	if id1 != 0 || id2 != 1 {
		t.Errorf("IDs not sequential: %d, %d", id1, id2)
	}
	if id3 != id1 {
		t.Errorf("Re-registration returned %d, expected %d", id3, id1)
	}
	if registry.Count() != 2 {
		t.Errorf("Expected 2 entries, got %d", registry.Count())
	}

	// Responses have no handler and cannot be dispatched.
	var data []byte
	if err := registry.Dispatch(id2, &data); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Dispatching a response returned %v", err)
	}

	commands, responses := registry.GetCommandsAndResponses()
	if commands["command1 arg1=%u"] != 0 || len(commands) != 1 {
		t.Errorf("Unexpected commands %v", commands)
	}
	if responses["response1 value=%u"] != 1 || len(responses) != 1 {
		t.Errorf("Unexpected responses %v", responses)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var received uint32
	id := registry.Register("test_args", "value=%u", func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		received = val
		return err
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if received != 12345 {
		t.Errorf("Expected value 12345, got %d", received)
	}
}

func TestBootstrapIDs(t *testing.T) {
	InitCoreCommands()

	for name, want := range map[string]uint16{"identify_response": 0, "identify": 1} {
		cmd, ok := GetGlobalRegistry().GetCommandByName(name)
		if !ok || cmd.ID != want {
			t.Errorf("%s registered as %+v, expected id %d", name, cmd, want)
		}
	}
}

func TestPendingReset(t *testing.T) {
	resets := 0
	SetResetHandler(func() { resets++ })
	defer SetResetHandler(nil)

	CheckPendingReset()
	if resets != 0 {
		t.Fatal("Reset without a request")
	}

	var data []byte
	if err := handleReset(&data); err != nil {
		t.Fatal(err)
	}
	CheckPendingReset()
	CheckPendingReset()
	if resets != 1 {
		t.Errorf("Expected one reset, got %d", resets)
	}
}
