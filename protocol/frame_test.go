package protocol

import (
	"bytes"
	"testing"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte("123456789"), 0x6F91},
		{[]byte{5, 0x10}, 0x9E81},
		{[]byte{5, 0x11}, 0x8F08},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("CRC16(% x) = 0x%04X, expected 0x%04X", tc.data, got, tc.expected)
		}
	}
}

func TestEncodeFrameAck(t *testing.T) {
	got := encodeFrame(nil, 0x11, nil)
	want := []byte{0x05, 0x11, 0x8F, 0x08, 0x7E}
	if !bytes.Equal(got, want) {
		t.Errorf("Ack block % x, expected % x", got, want)
	}
}

func TestDecoderFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x7E, 0x7E)
	stream = encodeFrame(stream, 0x10, []byte{0x01, 0x02})
	stream = encodeFrame(stream, 0x11, nil)

	dec := newDecoder()
	f, n, ok := dec.next(stream)
	if !ok || f.Seq != 0x10 || !bytes.Equal(f.Payload, []byte{0x01, 0x02}) {
		t.Fatalf("First block: %+v ok=%v", f, ok)
	}
	if n != 2+7 {
		t.Errorf("Expected 9 bytes consumed, got %d", n)
	}

	f, m, ok := dec.next(stream[n:])
	if !ok || f.Seq != 0x11 || !f.IsAck() {
		t.Fatalf("Second block: %+v ok=%v", f, ok)
	}
	if n+m != len(stream) {
		t.Errorf("Stream not fully consumed: %d of %d", n+m, len(stream))
	}

	if _, m, ok := dec.next(nil); ok || m != 0 {
		t.Errorf("Empty input returned ok=%v n=%d", ok, m)
	}
}

func TestDecoderPartial(t *testing.T) {
	block := encodeFrame(nil, 0x12, []byte{0x05, 0x06, 0x07})
	dec := newDecoder()

	_, n, ok := dec.next(block[:len(block)-1])
	if ok || n != 0 {
		t.Errorf("Partial block: ok=%v consumed=%d", ok, n)
	}
	if _, _, ok := dec.next(block); !ok {
		t.Error("Complete block not decoded")
	}
}

func TestDecoderResync(t *testing.T) {
	bad := encodeFrame(nil, 0x10, []byte{0x01})
	bad[2] ^= 0xFF // corrupt payload
	good := encodeFrame(nil, 0x11, []byte{0x02})

	stream := append(append([]byte{}, bad...), good...)

	resyncs := 0
	dec := newDecoder()
	dec.onResync = func() { resyncs++ }

	f, n, ok := dec.next(stream)
	if !ok || f.Seq != 0x11 || !bytes.Equal(f.Payload, []byte{0x02}) {
		t.Fatalf("Expected the good block after resync, got %+v ok=%v", f, ok)
	}
	if n != len(stream) {
		t.Errorf("Consumed %d of %d", n, len(stream))
	}
	if resyncs != 1 {
		t.Errorf("Expected 1 resync, got %d", resyncs)
	}
}

func TestDecoderOversizeLength(t *testing.T) {
	stream := []byte{0xFF, 0x10, 0x00, 0x00, 0x7E}
	stream = encodeFrame(stream, 0x13, nil)

	dec := newDecoder()
	f, _, ok := dec.next(stream)
	if !ok || f.Seq != 0x13 {
		t.Errorf("Expected recovery to the ack block, got %+v ok=%v", f, ok)
	}
}
