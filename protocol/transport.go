package protocol

import "sync/atomic"

// CommandHandler decodes and runs one command. It must consume exactly the
// arguments of cmdID from *data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it parses host blocks,
// dispatches their commands and frames responses.
type Transport struct {
	dec      decoder
	expected atomic.Uint32 // next sequence expected from the host
	output   OutputBuffer
	handler  CommandHandler

	resetCallback func()
	flushCallback func()

	// Errors counts commands whose handler failed.
	Errors uint32
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		dec:     newDecoder(),
		output:  output,
		handler: handler,
	}
	t.expected.Store(SeqBase)
	t.dec.onResync = t.sendAck
	return t
}

// Receive consumes complete blocks from input. Every block, in or out of
// sequence, is answered with an acknowledgement carrying the next expected
// sequence; out of sequence blocks are not executed.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	used := 0
	for {
		f, n, ok := t.dec.next(data[used:])
		used += n
		if !ok {
			break
		}
		if f.Seq&^SeqMask != SeqBase {
			t.dec.desync()
			continue
		}

		expected := uint8(t.expected.Load())
		if f.Seq == SeqBase && expected != SeqBase {
			// The host restarted its numbering.
			expected = SeqBase
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}
		if f.Seq == expected {
			t.expected.Store(uint32(nextSeq(expected)))
			t.dispatch(f.Payload)
		} else {
			t.expected.Store(uint32(expected))
		}
		t.sendAck()
	}
	if used > 0 {
		input.Pop(used)
	}
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		// A panicking handler leaves the payload half parsed; drop the
		// rest of the stream until the next block.
		if recover() != nil {
			t.Errors++
			t.dec.desync()
		}
	}()
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.dec.desync()
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			t.Errors++
			return
		}
	}
}

func (t *Transport) sendAck() {
	var buf [FrameMin]byte
	t.output.Output(encodeFrame(buf[:0], uint8(t.expected.Load()), nil))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one block whose payload is produced by frameData.
// The payload must fit in PayloadMax bytes.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	seq := uint8(t.expected.Load())
	t.output.Output([]byte{0, seq})
	frameData(t.output)

	size := len(t.output.DataSince(start)) + FrameTrailerSize
	t.output.Update(start, uint8(size))

	var trailer [FrameTrailerSize]byte
	out := appendCRC(trailer[:0], CRC16(t.output.DataSince(start)))
	t.output.Output(append(out, SyncByte))
}

// SendCommand frames a single response.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset forgets the host sequence, e.g. after the USB link was re-opened.
func (t *Transport) Reset() {
	t.dec = newDecoder()
	t.dec.onResync = t.sendAck
	t.expected.Store(SeqBase)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback is called when the host restarts its sequence numbering.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback is called after every acknowledgement so it reaches the
// host before any response queued behind it.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
