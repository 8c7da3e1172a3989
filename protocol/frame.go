package protocol

import "bytes"

// Frame is one validated message block.
type Frame struct {
	Seq     uint8
	Payload []byte // aliases the input buffer
}

// IsAck reports whether the block carries no commands.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// decoder splits a byte stream into blocks. After a corrupt block it drops
// everything up to the next sync byte.
type decoder struct {
	synced   bool
	onResync func()
}

func newDecoder() decoder {
	return decoder{synced: true}
}

func (d *decoder) desync() { d.synced = false }

// next finds the first valid block in data. It returns the block and the
// number of bytes consumed up to and including it. When no complete block
// is available ok is false and n is the number of leading bytes that can be
// discarded.
func (d *decoder) next(data []byte) (f Frame, n int, ok bool) {
	for n < len(data) {
		rest := data[n:]
		if !d.synced {
			i := bytes.IndexByte(rest, SyncByte)
			if i < 0 {
				return Frame{}, len(data), false
			}
			n += i + 1
			d.synced = true
			if d.onResync != nil {
				d.onResync()
			}
			continue
		}
		if rest[0] == SyncByte {
			n++
			continue
		}
		if len(rest) < FrameMin {
			break
		}
		size := int(rest[0])
		if size < FrameMin || size > FrameMax {
			d.synced = false
			continue
		}
		if len(rest) < size {
			break
		}
		body := rest[:size-FrameTrailerSize]
		crc := uint16(rest[size-3])<<8 | uint16(rest[size-2])
		if rest[size-1] != SyncByte || crc != CRC16(body) {
			d.synced = false
			continue
		}
		return Frame{Seq: rest[1], Payload: body[FrameHeaderSize:]}, n + size, true
	}
	return Frame{}, n, false
}

// encodeFrame appends a complete block to dst.
func encodeFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, byte(FrameMin+len(payload)), seq)
	dst = append(dst, payload...)
	dst = appendCRC(dst, CRC16(dst[start:]))
	return append(dst, SyncByte)
}
