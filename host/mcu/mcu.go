// Package mcu talks to the camera firmware over the block protocol: it
// retrieves the data dictionary, sends commands by name and decodes the
// responses.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"picocam/host/serial"
	"picocam/protocol"
)

var (
	ErrNotConnected  = errors.New("mcu: not connected")
	ErrNoDictionary  = errors.New("mcu: dictionary not loaded")
	ErrUnknownName   = errors.New("mcu: unknown command")
	ErrUnknownReply  = errors.New("mcu: unknown response id")
	ErrResponseTimer = errors.New("mcu: timed out waiting for response")
)

// identify and identify_response have fixed ids so the dictionary can be
// fetched before anything else is known.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

var identifyResponse = &messageFormat{
	id:   identifyResponseID,
	name: "identify_response",
	params: []param{
		{name: "offset", kind: argUint},
		{name: "data", kind: argBytes},
	},
}

// MCU represents a connection to the camera firmware.
type MCU struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	out       io.Writer

	mu             sync.Mutex
	dictionary     *Dictionary
	dictionaryData []byte
	commands       map[string]*messageFormat
	responses      map[uint16]*messageFormat

	incoming  chan *Response
	closed    chan struct{}
	closeOnce sync.Once
	connected bool

	mode Mode
}

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]interface{}    `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// NewMCU creates a new MCU instance (not yet connected). Progress output
// goes to out; nil discards it.
func NewMCU(out io.Writer) *MCU {
	if out == nil {
		out = io.Discard
	}
	return &MCU{out: out}
}

// Connect connects to an MCU via serial port. An empty device name picks
// the first attached board.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.Attach(port)

	// Give the firmware time to come up if it was just plugged in.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach starts the protocol on an already open stream.
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.port = port
	m.incoming = make(chan *Response, 4096)
	m.closed = make(chan struct{})
	m.responses = map[uint16]*messageFormat{identifyResponseID: identifyResponse}
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
	m.connected = true
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.closeOnce.Do(func() { close(m.closed) })
	m.connected = false
	return m.transport.Close()
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// handleResponse decodes one message on the transport's read goroutine.
// It blocks while the incoming queue is full.
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.Lock()
	mf := m.responses[cmdID]
	m.mu.Unlock()
	if mf == nil {
		fmt.Fprintf(m.out, "dropping message with unknown id %d\n", cmdID)
		return fmt.Errorf("%w %d", ErrUnknownReply, cmdID)
	}
	r, err := mf.decode(data)
	if err != nil {
		return err
	}
	select {
	case m.incoming <- r:
	case <-m.closed:
	}
	return nil
}

// await returns the next response named in names. Other responses are
// discarded.
func (m *MCU) await(deadline time.Time, names ...string) (*Response, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for {
		select {
		case r := <-m.incoming:
			for _, n := range names {
				if r.Name == n {
					return r, nil
				}
			}
			fmt.Fprintf(m.out, "ignoring %s\n", r.Name)
		case <-timer.C:
			return nil, fmt.Errorf("%w %v", ErrResponseTimer, names)
		case <-m.closed:
			return nil, ErrNotConnected
		}
	}
}

// drain discards queued responses left over from earlier exchanges.
func (m *MCU) drain() {
	for {
		select {
		case <-m.incoming:
		default:
			return
		}
	}
}

// RetrieveDictionary retrieves the complete dictionary from the MCU
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	fmt.Fprintln(m.out, "Retrieving dictionary from MCU...")

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	for i := 0; ; i++ {
		chunk, err := m.sendIdentify(offset, identifyChunk)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if i%10 == 9 {
			fmt.Fprintf(m.out, "  Retrieved %d bytes...\n", offset)
		}
		if len(chunk) < identifyChunk {
			break
		}
	}

	fmt.Fprintf(m.out, "Dictionary retrieved: %d bytes\n", dictBuffer.Len())
	data, err := inflate(dictBuffer.Bytes())
	if err != nil {
		return fmt.Errorf("failed to decompress dictionary: %w", err)
	}
	if err := m.parseDictionary(data); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return nil
}

// sendIdentify requests count dictionary bytes starting at offset.
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	m.drain()
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		r, err := m.await(deadline, identifyResponse.name)
		if err != nil {
			return nil, err
		}
		if r.Uint("offset") == offset {
			return r.Buffers["data"], nil
		}
	}
}

// inflate unwraps a zlib dictionary. Plain JSON passes through.
func inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// parseDictionary parses the dictionary JSON and indexes its messages.
func (m *MCU) parseDictionary(data []byte) error {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	commands := make(map[string]*messageFormat, len(dict.Commands))
	for sig, id := range dict.Commands {
		mf, err := parseSignature(uint16(id), sig)
		if err != nil {
			return err
		}
		commands[mf.name] = mf
	}
	responses := make(map[uint16]*messageFormat, len(dict.Responses))
	for sig, id := range dict.Responses {
		mf, err := parseSignature(uint16(id), sig)
		if err != nil {
			return err
		}
		responses[mf.id] = mf
	}
	if mf := responses[identifyResponseID]; mf == nil || mf.name != identifyResponse.name {
		return fmt.Errorf("identify_response is not message %d", identifyResponseID)
	}

	m.mu.Lock()
	m.dictionary = dict
	m.dictionaryData = data
	m.commands = commands
	m.responses = responses
	m.mu.Unlock()
	return nil
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// Constant returns a value from the dictionary's config section.
func (m *MCU) Constant(name string) (interface{}, bool) {
	if m.dictionary == nil {
		return nil, false
	}
	v, ok := m.dictionary.Config[name]
	return v, ok
}

// PrintDictionary writes a summary of the dictionary to w.
func (m *MCU) PrintDictionary(w io.Writer) {
	d := m.dictionary
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %v\n", k, d.Config[k])
	}

	printIDs := func(title string, ids map[string]int) {
		sigs := make([]string, 0, len(ids))
		for sig := range ids {
			sigs = append(sigs, sig)
		}
		sort.Slice(sigs, func(i, j int) bool { return ids[sigs[i]] < ids[sigs[j]] })
		fmt.Fprintf(w, "\n%s (%d):\n", title, len(sigs))
		for _, sig := range sigs {
			fmt.Fprintf(w, "  [%d] %s\n", ids[sig], sig)
		}
	}
	printIDs("Commands", d.Commands)
	printIDs("Responses", d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for _, name := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MCU) lookup(name string) (*messageFormat, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commands == nil {
		return nil, ErrNoDictionary
	}
	mf, ok := m.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	return mf, nil
}

// SendCommand sends command name with a raw argument writer.
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	mf, err := m.lookup(name)
	if err != nil {
		return err
	}
	return m.transport.SendCommand(mf.id, args)
}

// Send sends command name with integer arguments in signature order.
func (m *MCU) Send(name string, args ...int64) error {
	mf, err := m.lookup(name)
	if err != nil {
		return err
	}
	enc, err := mf.encoder(args)
	if err != nil {
		return err
	}
	return m.transport.SendCommand(mf.id, enc)
}

// Query sends a command and waits for the named response.
func (m *MCU) Query(name, response string, timeout time.Duration, args ...int64) (*Response, error) {
	m.drain()
	if err := m.Send(name, args...); err != nil {
		return nil, err
	}
	return m.await(time.Now().Add(timeout), response)
}

// Uptime returns the firmware's 64-bit tick count.
func (m *MCU) Uptime() (uint64, error) {
	r, err := m.Query("get_uptime", "uptime", time.Second)
	if err != nil {
		return 0, err
	}
	return uint64(r.Uint("high"))<<32 | uint64(r.Uint("clock")), nil
}

// Shutdown reports whether the firmware is in the shut down state.
func (m *MCU) Shutdown() (bool, error) {
	r, err := m.Query("get_config", "config", time.Second)
	if err != nil {
		return false, err
	}
	return r.Uint("is_shutdown") != 0, nil
}

// EmergencyStop shuts the firmware down. Only a reset leaves that state.
func (m *MCU) EmergencyStop() error {
	return m.Send("emergency_stop")
}
