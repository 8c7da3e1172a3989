package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrClosed     = errors.New("protocol: transport closed")
	ErrAckTimeout = errors.New("protocol: no acknowledgement")
	ErrTimeout    = errors.New("protocol: response timeout")
)

// ResponseHandler receives responses from the firmware. It runs on the
// transport's read goroutine and must not block on the transport.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is one response block as received.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// HostTransport is the host end of the link.
type HostTransport struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex
	seq     uint8
	wbuf    []byte

	mu      sync.Mutex
	handler ResponseHandler

	acks      chan uint8
	responses chan *Message
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       SeqBase,
		acks:      make(chan uint8, 16),
		responses: make(chan *Message, 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits up to two seconds for it to be
// acknowledged.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends one command and waits for the firmware to
// acknowledge its block.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	payload := NewScratchOutput()
	EncodeVLQUint(payload, uint32(cmdID))
	if args != nil {
		args(payload)
	}
	if n := len(payload.Result()); n > PayloadMax {
		return fmt.Errorf("protocol: command %d payload is %d bytes (max %d)", cmdID, n, PayloadMax)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := t.seq
	t.wbuf = encodeFrame(t.wbuf[:0], seq, payload.Result())
	if _, err := t.port.Write(t.wbuf); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}

	want := nextSeq(seq)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case got := <-t.acks:
			// Stale and resync acknowledgements are skipped.
			if got == want {
				t.seq = want
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("%w for sequence 0x%02x after %v", ErrAckTimeout, seq, timeout)
		case <-t.done:
			return t.closedErr()
		}
	}
}

// ReceiveResponse returns the next response not consumed by a handler.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case m := <-t.responses:
		return m, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-t.done:
		return nil, t.closedErr()
	}
}

// SetResponseHandler routes responses to handler instead of the queue read
// by ReceiveResponse. Delivery is synchronous, so nothing is dropped while
// the handler keeps up.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

func (t *HostTransport) closedErr() error {
	if t.readErr != nil && !errors.Is(t.readErr, io.EOF) {
		return fmt.Errorf("%w: %v", ErrClosed, t.readErr)
	}
	return ErrClosed
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	dec := newDecoder()
	in := NewFifoBuffer(4 * FrameMax * 16)
	chunk := make([]byte, 256)
	for {
		n, err := t.port.Read(chunk)
		if n > 0 {
			in.Write(chunk[:n])
			t.process(&dec, in)
		}
		if err != nil {
			select {
			case <-t.stop:
			default:
				t.readErr = err
			}
			return
		}
	}
}

func (t *HostTransport) process(dec *decoder, in *FifoBuffer) {
	data := in.Data()
	used := 0
	for {
		f, n, ok := dec.next(data[used:])
		used += n
		if !ok {
			break
		}
		if f.IsAck() {
			select {
			case t.acks <- f.Seq:
			default:
			}
			continue
		}
		t.deliver(f)
	}
	in.Pop(used)
}

func (t *HostTransport) deliver(f Frame) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		payload := f.Payload
		for len(payload) > 0 {
			id, err := DecodeVLQUint(&payload)
			if err != nil {
				return
			}
			if err := h(uint16(id), &payload); err != nil {
				return
			}
		}
		return
	}

	m := &Message{Sequence: f.Seq, Payload: append([]byte(nil), f.Payload...)}
	select {
	case t.responses <- m:
	default:
		// Nobody is reading; keep the newest.
		select {
		case <-t.responses:
		default:
		}
		t.responses <- m
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}

// Sequence is the sequence number the next command will use.
func (t *HostTransport) Sequence() uint8 {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.seq
}
