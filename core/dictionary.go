package core

import (
	"sort"
	"sync"

	"picocam/tinycompress"
)

// Constant is a firmware value published to the host in the "config"
// section of the dictionary.
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps value names (like pin names) to their wire index.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary describes the firmware to the host: version, constants,
// commands, responses and enumerations, serialized as JSON. The host
// fetches it zlib wrapped.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
	payload       []byte // cached wrapped in zlib
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "picocam-" + Version,
		buildVersions: "go-tinygo",
	}
}

func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached, d.payload = nil, nil
}

// AddEnumeration copies values; empty names are skipped when serializing
// but keep their index.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = &Enumeration{
		Name:   name,
		Values: append([]string(nil), values...),
	}
	d.cached, d.payload = nil, nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached, d.payload = nil, nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached, d.payload = nil, nil
}

// BuildDictionary serializes and caches the dictionary. Call it once all
// commands are registered; later registrations of constants or
// enumerations drop the cache.
func (d *Dictionary) BuildDictionary() {
	// Registry first: it has its own lock.
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.appendJSON(make([]byte, 0, 1024), commands, responses)
	d.payload = tinycompress.AppendZlib(make([]byte, 0, tinycompress.StoredSize(len(d.cached))), d.cached)
	DebugPrintln("[dict] " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the serialized dictionary.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.appendJSON(make([]byte, 0, 1024), commands, responses)
}

// appendJSON writes the dictionary with sorted keys so the output is
// stable between builds. Caller holds d.mu.
func (d *Dictionary) appendJSON(b []byte, commands, responses map[string]int) []byte {
	b = append(b, `{"version":`...)
	b = appendString(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendString(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendString(b, name)
		b = append(b, ':')
		b = appendValue(b, d.constants[name].Value)
	}
	b = append(b, '}')

	b = append(b, `,"commands":`...)
	b = appendIDs(b, commands)
	b = append(b, `,"responses":`...)
	b = appendIDs(b, responses)

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		names = names[:0]
		for name := range d.enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendString(b, name)
			b = append(b, ":{"...)
			first := true
			for idx, v := range d.enumerations[name].Values {
				if v == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				b = appendString(b, v)
				b = append(b, ':')
				b = append(b, itoa(idx)...)
				first = false
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

// appendIDs writes {"signature":id,...} ordered by id.
func appendIDs(b []byte, ids map[string]int) []byte {
	sigs := make([]string, 0, len(ids))
	for sig := range ids {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return ids[sigs[i]] < ids[sigs[j]] })

	b = append(b, '{')
	for i, sig := range sigs {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendString(b, sig)
		b = append(b, ':')
		b = append(b, itoa(ids[sig])...)
	}
	return append(b, '}')
}

// Payload returns the dictionary as served over identify.
func (d *Dictionary) Payload() []byte {
	d.mu.RLock()
	payload := d.payload
	d.mu.RUnlock()
	if payload != nil {
		return payload
	}
	return tinycompress.AppendZlib(nil, d.Generate())
}

// GetChunk returns a copy of at most count payload bytes at offset. An
// empty chunk marks the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Payload()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	// The cache may be rebuilt while the chunk sits in the output buffer.
	return append([]byte(nil), data[offset:end]...)
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
