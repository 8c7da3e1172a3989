package protocol

import "testing"

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("After popping 2: %v", buf.Data())
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past the end left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	scratch.Update(7, 99) // beyond written data, ignored
	if scratch.Result()[0] != 99 || scratch.CurPosition() != 5 {
		t.Errorf("Update failed: %v", scratch.Result())
	}

	since := scratch.DataSince(2)
	if len(since) != 3 || since[0] != 3 {
		t.Errorf("DataSince(2) = %v, expected [3 4 5]", since)
	}
	if scratch.DataSince(6) != nil {
		t.Error("DataSince past the end should be nil")
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 || scratch.Free() != OutputMax {
		t.Errorf("After reset: position %d free %d", scratch.CurPosition(), scratch.Free())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, OutputMax-1))
	scratch.Output([]byte{1, 2, 3})
	if scratch.CurPosition() != OutputMax {
		t.Errorf("Expected output to stop at %d, got %d", OutputMax, scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(8)
	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", n)
	}

	out := make([]byte, 3)
	if n := fifo.Read(out); n != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("Read %d bytes: %v", n, out)
	}

	// Needs the space freed at the front.
	if n := fifo.Write([]byte{6, 7, 8, 9, 10, 11}); n != 6 {
		t.Errorf("Expected to write 6 bytes after compaction, wrote %d", n)
	}
	data := fifo.Data()
	want := []byte{4, 5, 6, 7, 8, 9, 10, 11}
	if string(data) != string(want) {
		t.Errorf("Data = %v, expected %v", data, want)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected full buffer, %d free", fifo.Free())
	}
	if n := fifo.Write([]byte{12}); n != 0 {
		t.Errorf("Write to a full buffer took %d bytes", n)
	}

	fifo.Pop(fifo.Available())
	if !fifo.IsEmpty() || fifo.Free() != 8 {
		t.Error("Buffer not empty after popping everything")
	}
}
