package protocol

// InputBuffer is received data waiting to be parsed.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer collects encoded blocks. Update and DataSince let a writer
// patch the length byte and checksum a block after its payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is a fixed size OutputBuffer. Output beyond OutputMax is
// dropped; callers flush between large responses.
type ScratchOutput struct {
	buf [OutputMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Free is the space left before output is dropped.
func (s *ScratchOutput) Free() int { return len(s.buf) - s.pos }

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer buffers received bytes until they form complete blocks. Data
// is kept contiguous by sliding it to the front when the tail runs out of
// room, so Data never allocates.
type FifoBuffer struct {
	buf        []byte
	start, end int
}

func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the number of bytes
// taken.
func (f *FifoBuffer) Write(data []byte) int {
	if len(f.buf)-f.end < len(data) && f.start > 0 {
		n := copy(f.buf, f.buf[f.start:f.end])
		f.start, f.end = 0, n
	}
	n := copy(f.buf[f.end:], data)
	f.end += n
	return n
}

// Read moves up to len(p) bytes out of the buffer.
func (f *FifoBuffer) Read(p []byte) int {
	n := copy(p, f.buf[f.start:f.end])
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Data() []byte   { return f.buf[f.start:f.end] }
func (f *FifoBuffer) Available() int { return f.end - f.start }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.Available() }
func (f *FifoBuffer) IsEmpty() bool  { return f.start == f.end }

func (f *FifoBuffer) Pop(n int) {
	f.start += min(n, f.Available())
	if f.start == f.end {
		f.start, f.end = 0, 0
	}
}

func (f *FifoBuffer) Reset() {
	f.start, f.end = 0, 0
}
