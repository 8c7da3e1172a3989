// Package protocol implements the framed serial link between the camera
// firmware and the host.
//
// Every message block on the wire is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole block (5..64 bytes), seq carries 0x10 in the
// high nibble plus a 4 bit sequence number, and the CRC covers len, seq and
// the payload. A payload is a sequence of VLQ encoded command ids each
// followed by their VLQ encoded arguments. A block with an empty payload
// acknowledges every block up to (but not including) the sequence it carries.
package protocol

// Version is the firmware protocol version reported in the dictionary.
const Version = "0.2.0"

const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64

	// PayloadMax is the largest payload that fits in one block.
	PayloadMax = FrameMax - FrameMin

	SeqBase  = 0x10
	SeqMask  = 0x0F
	SyncByte = 0x7E

	// OutputMax is the size of a scratch output buffer. Several blocks can
	// be queued in one before a flush.
	OutputMax = 512
)

// nextSeq returns the sequence following seq.
func nextSeq(seq uint8) uint8 {
	return (seq+1)&SeqMask | SeqBase
}
