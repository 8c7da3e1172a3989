package hm01b0

import (
	"errors"
	"testing"
)

func TestResolveModePresets(t *testing.T) {
	tests := []struct {
		width, height    int
		readoutX         uint8
		readoutY         uint8
		binning          uint8
		qvga             uint8
		frameLengthLines uint16
		lineLengthPCLK   uint16
	}{
		{320, 320, 0x01, 0x01, 0x00, 0x00, 0x0158, 0x0178},
		{320, 240, 0x01, 0x01, 0x00, 0x01, 0x0104, 0x0178},
		{160, 120, 0x03, 0x03, 0x03, 0x01, 0x0080, 0x00D7},
	}

	for _, tt := range tests {
		m, err := ResolveMode(tt.width, tt.height, 8)
		if err != nil {
			t.Errorf("%dx%d: unexpected error %v", tt.width, tt.height, err)
			continue
		}
		if m.ReadoutX != tt.readoutX || m.ReadoutY != tt.readoutY {
			t.Errorf("%dx%d: readout %#x/%#x, expected %#x/%#x", tt.width, tt.height, m.ReadoutX, m.ReadoutY, tt.readoutX, tt.readoutY)
		}
		if m.BinningMode != tt.binning || m.QVGAWinEn != tt.qvga {
			t.Errorf("%dx%d: binning %#x qvga %#x, expected %#x %#x", tt.width, tt.height, m.BinningMode, m.QVGAWinEn, tt.binning, tt.qvga)
		}
		if m.FrameLengthLines != tt.frameLengthLines || m.LineLengthPCLK != tt.lineLengthPCLK {
			t.Errorf("%dx%d: frame/line length %#x/%#x, expected %#x/%#x", tt.width, tt.height,
				m.FrameLengthLines, m.LineLengthPCLK, tt.frameLengthLines, tt.lineLengthPCLK)
		}
		if m.BorderPixels != 2 {
			t.Errorf("%dx%d: border %d, expected 2", tt.width, tt.height, m.BorderPixels)
		}
		if m.FrameSize() != tt.width*tt.height {
			t.Errorf("%dx%d: frame size %d", tt.width, tt.height, m.FrameSize())
		}
	}
}

func TestResolveModeDataBits(t *testing.T) {
	tests := []struct {
		bits       int
		bitControl uint8
		ppc        int
	}{
		{8, 0x02, 1},
		{4, 0x42, 2},
		{1, 0x22, 8},
	}

	for _, tt := range tests {
		m, err := ResolveMode(160, 120, tt.bits)
		if err != nil {
			t.Fatalf("%d bits: %v", tt.bits, err)
		}
		if m.BitControl != tt.bitControl {
			t.Errorf("%d bits: bit control %#x, expected %#x", tt.bits, m.BitControl, tt.bitControl)
		}
		if m.PixelsPerClock != tt.ppc {
			t.Errorf("%d bits: pixels per clock %d, expected %d", tt.bits, m.PixelsPerClock, tt.ppc)
		}
		if want := uint32(160*tt.ppc - 1); m.LineParameter() != want {
			t.Errorf("%d bits: line parameter %d, expected %d", tt.bits, m.LineParameter(), want)
		}
	}
}

func TestResolveModeErrors(t *testing.T) {
	tests := []struct {
		width, height, bits int
		want                error
	}{
		{640, 480, 8, ErrUnsupportedResolution},
		{0, 0, 8, ErrUnsupportedResolution},
		{120, 160, 8, ErrUnsupportedResolution},
		{160, 120, 2, ErrUnsupportedBitDepth},
		{160, 120, 0, ErrUnsupportedBitDepth},
		{320, 320, 16, ErrUnsupportedBitDepth},
		// Resolution is reported before bus width.
		{100, 100, 3, ErrUnsupportedResolution},
	}

	for _, tt := range tests {
		_, err := ResolveMode(tt.width, tt.height, tt.bits)
		if !errors.Is(err, tt.want) {
			t.Errorf("ResolveMode(%d, %d, %d): expected %v, got %v", tt.width, tt.height, tt.bits, tt.want, err)
		}
	}
}

func TestSupportedModes(t *testing.T) {
	modes := SupportedModes()
	if len(modes) != 3 {
		t.Fatalf("Expected 3 supported modes, got %d", len(modes))
	}
	for _, r := range modes {
		if _, err := ResolveMode(r.Width, r.Height, 8); err != nil {
			t.Errorf("Listed mode %dx%d does not resolve: %v", r.Width, r.Height, err)
		}
	}
}
