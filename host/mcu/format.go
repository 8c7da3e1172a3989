package mcu

import (
	"fmt"
	"strings"

	"picocam/protocol"
)

// argKind is how one message parameter is encoded on the wire.
type argKind uint8

const (
	argUint argKind = iota
	argInt
	argBytes
)

type param struct {
	name string
	kind argKind
}

// messageFormat is a parsed "name a=%u b=%*s" signature.
type messageFormat struct {
	id     uint16
	name   string
	params []param
}

// parseSignature splits a dictionary key into the message name and its
// parameters.
func parseSignature(id uint16, sig string) (*messageFormat, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message signature")
	}
	mf := &messageFormat{id: id, name: fields[0]}
	for _, f := range fields[1:] {
		name, conv, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("%s: malformed parameter %q", mf.name, f)
		}
		var kind argKind
		switch conv {
		case "%u", "%hu", "%c":
			kind = argUint
		case "%i", "%hi":
			kind = argInt
		case "%*s", "%s", "%.*s":
			kind = argBytes
		default:
			return nil, fmt.Errorf("%s: unknown conversion %q", mf.name, conv)
		}
		mf.params = append(mf.params, param{name: name, kind: kind})
	}
	return mf, nil
}

// Response is one decoded firmware message.
type Response struct {
	Name    string
	Values  map[string]int64
	Buffers map[string][]byte
}

// Uint returns parameter name as an unsigned value.
func (r *Response) Uint(name string) uint32 {
	return uint32(r.Values[name])
}

func (mf *messageFormat) decode(data *[]byte) (*Response, error) {
	r := &Response{Name: mf.name, Values: make(map[string]int64, len(mf.params))}
	for _, p := range mf.params {
		switch p.kind {
		case argUint:
			v, err := protocol.DecodeVLQUint(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			r.Values[p.name] = int64(v)
		case argInt:
			v, err := protocol.DecodeVLQInt(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			r.Values[p.name] = int64(v)
		case argBytes:
			b, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			if r.Buffers == nil {
				r.Buffers = make(map[string][]byte, 1)
			}
			r.Buffers[p.name] = append([]byte(nil), b...)
		}
	}
	return r, nil
}

// encoder returns an argument writer for integer parameters.
func (mf *messageFormat) encoder(args []int64) (func(protocol.OutputBuffer), error) {
	if len(args) != len(mf.params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", mf.name, len(mf.params), len(args))
	}
	for _, p := range mf.params {
		if p.kind == argBytes {
			return nil, fmt.Errorf("%s: buffer parameter %s not supported", mf.name, p.name)
		}
	}
	return func(out protocol.OutputBuffer) {
		for i, p := range mf.params {
			if p.kind == argInt {
				protocol.EncodeVLQInt(out, int32(args[i]))
			} else {
				protocol.EncodeVLQUint(out, uint32(args[i]))
			}
		}
	}, nil
}
