package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from data and runs a command.
type CommandHandler func(data *[]byte) error

// Command is one entry of the message dictionary. Responses are entries
// without a handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument list, e.g. "width=%hu height=%hu"
	Handler CommandHandler
}

// CommandRegistry assigns message ids in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
}

var ErrUnknownCommand = errors.New("unknown command")

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand adds a host to firmware command to the global registry.
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds a firmware to host message to the global registry.
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a message and returns its id. Registering a name twice
// returns the first id and keeps the first definition.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	return id
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of command id. Responses cannot be dispatched.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(id)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Signature returns "name args" as it appears in the dictionary.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// GetCommandsAndResponses splits the registry into the two dictionary
// sections, keyed by signature.
func (r *CommandRegistry) GetCommandsAndResponses() (commands map[string]int, responses map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands = make(map[string]int)
	responses = make(map[string]int)
	for id, cmd := range r.commands {
		if cmd.Handler != nil {
			commands[cmd.Signature()] = int(id)
		} else {
			responses[cmd.Signature()] = int(id)
		}
	}
	return commands, responses
}

// DispatchCommand dispatches on the global registry. It has the signature
// of a protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
