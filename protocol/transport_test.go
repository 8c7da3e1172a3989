package protocol

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func commandBlock(seq uint8, cmdID uint32, args ...uint32) []byte {
	payload := NewScratchOutput()
	EncodeVLQUint(payload, cmdID)
	for _, a := range args {
		EncodeVLQUint(payload, a)
	}
	return encodeFrame(nil, seq, payload.Result())
}

func TestTransportDispatch(t *testing.T) {
	output := NewScratchOutput()
	var got []uint32
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		arg, err := DecodeVLQUint(data)
		got = append(got, uint32(cmdID), arg)
		return err
	})

	input := NewSliceInputBuffer(commandBlock(0x10, 3, 300))
	tr.Receive(input)

	if len(got) != 2 || got[0] != 3 || got[1] != 300 {
		t.Errorf("Handler saw %v, expected [3 300]", got)
	}
	if input.Available() != 0 {
		t.Errorf("%d bytes left in input", input.Available())
	}
	if want := encodeFrame(nil, 0x11, nil); !bytes.Equal(output.Result(), want) {
		t.Errorf("Output % x, expected ack % x", output.Result(), want)
	}
}

func TestTransportOutOfSequence(t *testing.T) {
	output := NewScratchOutput()
	calls := 0
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		calls++
		return nil
	})

	tr.Receive(NewSliceInputBuffer(commandBlock(0x10, 1)))
	output.Reset()

	// Retransmission of an old block is acknowledged but not executed.
	tr.Receive(NewSliceInputBuffer(commandBlock(0x14, 1)))
	if calls != 1 {
		t.Errorf("Out of sequence block executed (calls=%d)", calls)
	}
	if want := encodeFrame(nil, 0x11, nil); !bytes.Equal(output.Result(), want) {
		t.Errorf("Expected nak with sequence 0x11, got % x", output.Result())
	}
}

func TestTransportHostRestart(t *testing.T) {
	output := NewScratchOutput()
	resets := 0
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error { return nil })
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(commandBlock(0x10, 1)))
	tr.Receive(NewSliceInputBuffer(commandBlock(0x11, 1)))
	tr.Receive(NewSliceInputBuffer(commandBlock(0x10, 1)))

	if resets != 1 {
		t.Errorf("Expected 1 reset, got %d", resets)
	}
}

func TestTransportPartialInput(t *testing.T) {
	output := NewScratchOutput()
	calls := 0
	var args []uint32
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		calls++
		for i := 0; i < 3; i++ {
			v, err := DecodeVLQUint(data)
			if err != nil {
				return err
			}
			args = append(args, v)
		}
		return nil
	})

	block := commandBlock(0x10, 7, 1, 2, 3)
	fifo := NewFifoBuffer(128)
	fifo.Write(block[:4])
	tr.Receive(fifo)
	if calls != 0 || fifo.Available() != 4 {
		t.Fatalf("Partial block consumed (calls=%d, left=%d)", calls, fifo.Available())
	}
	fifo.Write(block[4:])
	tr.Receive(fifo)
	if calls != 1 || !fifo.IsEmpty() {
		t.Errorf("Complete block not processed (calls=%d, left=%d)", calls, fifo.Available())
	}
	if len(args) != 3 || args[0] != 1 || args[1] != 2 || args[2] != 3 {
		t.Errorf("Handler decoded %v, expected [1 2 3]", args)
	}
}

func TestTransportHandlerPanic(t *testing.T) {
	output := NewScratchOutput()
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		panic("boom")
	})

	tr.Receive(NewSliceInputBuffer(commandBlock(0x10, 1)))
	if tr.Errors != 1 {
		t.Errorf("Expected 1 counted error, got %d", tr.Errors)
	}
}

func TestTransportEncodeFrame(t *testing.T) {
	output := NewScratchOutput()
	tr := NewTransport(output, nil)

	tr.SendCommand(9, func(out OutputBuffer) {
		EncodeVLQBytes(out, []byte{0xAB, 0xCD})
	})

	dec := newDecoder()
	f, n, ok := dec.next(output.Result())
	if !ok || n != len(output.Result()) {
		t.Fatalf("Response block not decodable: % x", output.Result())
	}
	if f.Seq != SeqBase {
		t.Errorf("Expected sequence 0x10, got 0x%02x", f.Seq)
	}
	if want := []byte{0x09, 0x02, 0xAB, 0xCD}; !bytes.Equal(f.Payload, want) {
		t.Errorf("Payload % x, expected % x", f.Payload, want)
	}
}

// firmware runs a Transport on the far end of a pipe.
func firmware(t *testing.T, conn net.Conn, handler func(tr *Transport, cmdID uint16, data *[]byte) error) {
	t.Helper()
	output := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(output, func(cmdID uint16, data *[]byte) error {
		return handler(tr, cmdID, data)
	})
	go func() {
		fifo := NewFifoBuffer(1024)
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			tr.Receive(fifo)
			if output.CurPosition() == 0 {
				continue
			}
			if _, err := conn.Write(output.Result()); err != nil {
				return
			}
			output.Reset()
		}
	}()
}

func TestHostTransportRoundTrip(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	firmware(t, mcuEnd, func(tr *Transport, cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		tr.SendCommand(cmdID+100, func(out OutputBuffer) {
			EncodeVLQUint(out, v*2)
		})
		return nil
	})

	host := NewHostTransport(hostEnd)
	defer host.Close()

	for i := uint32(0); i < 20; i++ {
		err := host.SendCommand(1, func(out OutputBuffer) { EncodeVLQUint(out, i) })
		if err != nil {
			t.Fatalf("SendCommand %d failed: %v", i, err)
		}
		msg, err := host.ReceiveResponse(time.Second)
		if err != nil {
			t.Fatalf("ReceiveResponse %d failed: %v", i, err)
		}
		payload := msg.Payload
		id, _ := DecodeVLQUint(&payload)
		v, _ := DecodeVLQUint(&payload)
		if id != 101 || v != 2*i {
			t.Errorf("Response %d: id %d value %d", i, id, v)
		}
	}
	// Twenty commands wrap the four bit sequence.
	if got := host.Sequence(); got != nextSeq(SeqBase+3) {
		t.Errorf("Sequence 0x%02x after 20 commands", got)
	}
}

func TestHostTransportHandler(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	firmware(t, mcuEnd, func(tr *Transport, cmdID uint16, data *[]byte) error {
		for i := uint32(0); i < 10; i++ {
			tr.SendCommand(5, func(out OutputBuffer) { EncodeVLQUint(out, i) })
		}
		return nil
	})

	host := NewHostTransport(hostEnd)
	defer host.Close()

	got := make(chan uint32, 10)
	host.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		got <- v
		return err
	})

	if err := host.SendCommand(2, nil); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	for i := uint32(0); i < 10; i++ {
		select {
		case v := <-got:
			if v != i {
				t.Errorf("Response %d carried %d", i, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("Response %d not delivered", i)
		}
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := mcuEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	err := host.SendCommandWithTimeout(1, nil, 50*time.Millisecond)
	if !errors.Is(err, ErrAckTimeout) {
		t.Errorf("Expected ErrAckTimeout, got %v", err)
	}
}

func TestHostTransportPayloadTooLarge(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()
	host := NewHostTransport(hostEnd)
	defer host.Close()

	err := host.SendCommand(1, func(out OutputBuffer) { out.Output(make([]byte, PayloadMax)) })
	if err == nil {
		t.Error("Expected error for oversized payload")
	}
}

func TestHostTransportClosed(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	host := NewHostTransport(hostEnd)
	mcuEnd.Close()

	_, err := host.ReceiveResponse(time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	host.Close()
}
