package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

func inflate(t *testing.T, stream []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("Dictionary payload is not zlib: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Inflating dictionary: %v", err)
	}
	return out
}

type dictionaryJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]interface{}    `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func TestDictionary(t *testing.T) {
	reg := NewCommandRegistry()
	dict := NewDictionary(reg)

	dict.AddConstant("TEST_CONST", uint32(42))
	dict.AddConstant("TEST_STR", `say "hi"`)
	dict.AddEnumeration("pin", []string{"gpio0", "", "gpio2"})
	reg.Register("identify_response", "offset=%u data=%*s", nil)
	reg.Register("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })

	var got dictionaryJSON
	if err := json.Unmarshal(dict.Generate(), &got); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, dict.Generate())
	}

	if got.Version != "picocam-"+Version {
		t.Errorf("Version %q", got.Version)
	}
	if got.Config["TEST_CONST"] != float64(42) || got.Config["TEST_STR"] != `say "hi"` {
		t.Errorf("Unexpected config %v", got.Config)
	}
	if got.Commands["identify offset=%u count=%c"] != 1 {
		t.Errorf("Unexpected commands %v", got.Commands)
	}
	if id, ok := got.Responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("Unexpected responses %v", got.Responses)
	}
	pins := got.Enumerations["pin"]
	if len(pins) != 2 || pins["gpio2"] != 2 {
		t.Errorf("Unexpected pin enumeration %v", pins)
	}
}

func TestDictionaryCache(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.BuildDictionary()
	before := dict.Generate()

	dict.AddConstant("LATE", 1)
	after := dict.Generate()
	if bytes.Equal(before, after) || !bytes.Contains(after, []byte(`"LATE":1`)) {
		t.Errorf("Constant added after the build is missing: %s", after)
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))
	dict.BuildDictionary()
	full := dict.Payload()

	var rebuilt []byte
	for offset := uint32(0); ; {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 40 {
			t.Fatalf("Chunk of %d bytes", len(chunk))
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}
	if !bytes.Equal(rebuilt, full) {
		t.Errorf("Chunks rebuild %q, expected %q", rebuilt, full)
	}
	if text := inflate(t, rebuilt); !bytes.Equal(text, dict.Generate()) {
		t.Errorf("Payload inflates to %q", text)
	}

	if chunk := dict.GetChunk(uint32(len(full)+100), 10); len(chunk) != 0 {
		t.Error("Chunk beyond end should be empty")
	}
}

func TestIdentify(t *testing.T) {
	l, _ := newLink(t)
	GetGlobalDictionary().BuildDictionary()
	full := GetGlobalDictionary().Payload()

	var rebuilt []byte
	for {
		l.command("identify", uint32(len(rebuilt)), 40)
		r := l.take()
		if len(r) != 1 || r[0].name != "identify_response" {
			t.Fatalf("Unexpected identify answer %+v", r)
		}
		if int(r[0].args[0]) != len(rebuilt) {
			t.Fatalf("Response for offset %d, expected %d", r[0].args[0], len(rebuilt))
		}
		if len(r[0].data) == 0 {
			break
		}
		rebuilt = append(rebuilt, r[0].data...)
	}
	if !bytes.Equal(rebuilt, full) {
		t.Error("Dictionary retrieved over identify differs")
	}

	var got dictionaryJSON
	if err := json.Unmarshal(inflate(t, rebuilt), &got); err != nil {
		t.Fatal(err)
	}
	if got.Config["CAMERA_SENSOR"] != "hm01b0" || got.Config["CAMERA_MODES"] != "320x320,320x240,160x120" {
		t.Errorf("Camera constants missing: %v", got.Config)
	}
	if _, ok := got.Commands["camera_configure width=%hu height=%hu data_bits=%c"]; !ok {
		t.Error("camera_configure missing from the dictionary")
	}
}
