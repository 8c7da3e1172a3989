package hm01b0

// Address is the fixed 7-bit two-wire bus address of the HM01B0.
const Address = 0x24

// ModelID is the value of the MODEL_ID register pair on a genuine part.
const ModelID = 0x01B0

// Register map (subset used by the driver). All addresses are 16 bits wide
// and transmitted most-significant byte first.
const (
	RegModelIDH        uint16 = 0x0000
	RegModelIDL        uint16 = 0x0001
	RegModeSelect      uint16 = 0x0100
	RegSWReset         uint16 = 0x0103
	RegGrpParamHold    uint16 = 0x0104
	RegIntegrationH    uint16 = 0x0202
	RegIntegrationL    uint16 = 0x0203
	RegFrameLengthLine uint16 = 0x0340
	RegLineLengthPCLK  uint16 = 0x0342
	RegReadoutX        uint16 = 0x0383
	RegReadoutY        uint16 = 0x0387
	RegBinningMode     uint16 = 0x0390
	RegQVGAWinEn       uint16 = 0x3010
	RegBitControl      uint16 = 0x3059
	RegOscClkDiv       uint16 = 0x3060
)

// MODE_SELECT values.
const (
	modeSelectStandby   = 0x00
	modeSelectStreaming = 0x01
)

const (
	swResetTrigger = 0x01
	grpParamApply  = 0x01

	// OSC_CLK_DIV: bit 3 selects the gated MCLK path, divider 0.
	oscClkDivValue = 0x08 | 0
)

// Bit control values (0x3059) per data-bus width.
const (
	bitControl8 = 0x02
	bitControl4 = 0x42
	bitControl1 = 0x22
)
