package hm01b0

// BorderPixels is the number of garbage lines at the top of each frame and
// garbage pixels at the start of each line. It is the same for all presets.
const BorderPixels = 2

// Mode holds the register values resolved from a requested resolution and
// data bus width.
type Mode struct {
	Width    int
	Height   int
	DataBits int

	ReadoutX         uint8
	ReadoutY         uint8
	BinningMode      uint8
	QVGAWinEn        uint8
	FrameLengthLines uint16
	LineLengthPCLK   uint16
	BitControl       uint8

	// PixelsPerClock is the number of pclk cycles needed to move one pixel
	// over the data bus: 1, 2 or 8 for 8, 4 or 1 data lines.
	PixelsPerClock int
	BorderPixels   int
}

type preset struct {
	width, height    int
	readoutX         uint8
	readoutY         uint8
	binningMode      uint8
	qvgaWinEn        uint8
	frameLengthLines uint16
	lineLengthPCLK   uint16
}

var presets = [...]preset{
	{320, 320, 0x01, 0x01, 0x00, 0x00, 0x0158, 0x0178},
	{320, 240, 0x01, 0x01, 0x00, 0x01, 0x0104, 0x0178},
	{160, 120, 0x03, 0x03, 0x03, 0x01, 0x0080, 0x00D7},
}

// Resolution is a supported output size.
type Resolution struct {
	Width, Height int
}

// SupportedModes lists the resolutions accepted by ResolveMode.
func SupportedModes() []Resolution {
	res := make([]Resolution, len(presets))
	for i, p := range presets {
		res[i] = Resolution{Width: p.width, Height: p.height}
	}
	return res
}

// ResolveMode maps a requested resolution and data bus width to register
// values. The resolution is checked before the bus width.
func ResolveMode(width, height, dataBits int) (Mode, error) {
	var p *preset
	for i := range presets {
		if presets[i].width == width && presets[i].height == height {
			p = &presets[i]
			break
		}
	}
	if p == nil {
		return Mode{}, ErrUnsupportedResolution
	}

	m := Mode{
		Width:            width,
		Height:           height,
		DataBits:         dataBits,
		ReadoutX:         p.readoutX,
		ReadoutY:         p.readoutY,
		BinningMode:      p.binningMode,
		QVGAWinEn:        p.qvgaWinEn,
		FrameLengthLines: p.frameLengthLines,
		LineLengthPCLK:   p.lineLengthPCLK,
		BorderPixels:     BorderPixels,
	}

	switch dataBits {
	case 8:
		m.BitControl = bitControl8
		m.PixelsPerClock = 1
	case 4:
		m.BitControl = bitControl4
		m.PixelsPerClock = 2
	case 1:
		m.BitControl = bitControl1
		m.PixelsPerClock = 8
	default:
		return Mode{}, ErrUnsupportedBitDepth
	}
	return m, nil
}

// FrameSize is the number of bytes in one captured frame, one per pixel.
func (m Mode) FrameSize() int {
	return m.Width * m.Height
}

// LineParameter is the per-line pixel loop count pushed to the timing
// program before each frame. The loop branches on a post-decremented
// counter, so it runs LineParameter()+1 = Width*PixelsPerClock times.
func (m Mode) LineParameter() uint32 {
	return uint32(m.Width*m.PixelsPerClock) - 1
}
