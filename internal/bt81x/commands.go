package bt81x

import "fmt"

// HostCommand is sent as a 3 byte frame before the chip accepts register
// traffic.
type HostCommand uint8

const (
	HostActive        HostCommand = 0x00
	HostStandby       HostCommand = 0x41
	HostSleep         HostCommand = 0x42
	HostPowerDown     HostCommand = 0x50
	HostClockInternal HostCommand = 0x48
	HostClockExternal HostCommand = 0x44
	HostClockSelect   HostCommand = 0x62
	HostResetPulse    HostCommand = 0x68
)

// Command is a coprocessor command opcode. Coprocessor commands carry the
// 0xFFFFFF prefix; any other value is a display list word travelling through
// the FIFO unchanged.
type Command uint32

const (
	CmdDLStart        Command = 0xFFFFFF00
	CmdSwap           Command = 0xFFFFFF01
	CmdInterrupt      Command = 0xFFFFFF02
	CmdBgColor        Command = 0xFFFFFF09
	CmdFgColor        Command = 0xFFFFFF0A
	CmdGradient       Command = 0xFFFFFF0B
	CmdText           Command = 0xFFFFFF0C
	CmdButton         Command = 0xFFFFFF0D
	CmdKeys           Command = 0xFFFFFF0E
	CmdProgress       Command = 0xFFFFFF0F
	CmdSlider         Command = 0xFFFFFF10
	CmdScrollbar      Command = 0xFFFFFF11
	CmdToggle         Command = 0xFFFFFF12
	CmdGauge          Command = 0xFFFFFF13
	CmdClock          Command = 0xFFFFFF14
	CmdCalibrate      Command = 0xFFFFFF15
	CmdSpinner        Command = 0xFFFFFF16
	CmdStop           Command = 0xFFFFFF17
	CmdMemCRC         Command = 0xFFFFFF18
	CmdRegRead        Command = 0xFFFFFF19
	CmdMemWrite       Command = 0xFFFFFF1A
	CmdMemSet         Command = 0xFFFFFF1B
	CmdMemZero        Command = 0xFFFFFF1C
	CmdMemCpy         Command = 0xFFFFFF1D
	CmdAppend         Command = 0xFFFFFF1E
	CmdSnapshot       Command = 0xFFFFFF1F
	CmdInflate        Command = 0xFFFFFF22
	CmdGetPtr         Command = 0xFFFFFF23
	CmdLoadImage      Command = 0xFFFFFF24
	CmdGetProps       Command = 0xFFFFFF25
	CmdLoadIdentity   Command = 0xFFFFFF26
	CmdTranslate      Command = 0xFFFFFF27
	CmdScale          Command = 0xFFFFFF28
	CmdRotate         Command = 0xFFFFFF29
	CmdSetMatrix      Command = 0xFFFFFF2A
	CmdSetFont        Command = 0xFFFFFF2B
	CmdTrack          Command = 0xFFFFFF2C
	CmdDial           Command = 0xFFFFFF2D
	CmdNumber         Command = 0xFFFFFF2E
	CmdScreensaver    Command = 0xFFFFFF2F
	CmdSketch         Command = 0xFFFFFF30
	CmdLogo           Command = 0xFFFFFF31
	CmdColdstart      Command = 0xFFFFFF32
	CmdGetMatrix      Command = 0xFFFFFF33
	CmdGradColor      Command = 0xFFFFFF34
	CmdSetRotate      Command = 0xFFFFFF36
	CmdSnapshot2      Command = 0xFFFFFF37
	CmdMediaFIFO      Command = 0xFFFFFF39
	CmdPlayVideo      Command = 0xFFFFFF3A
	CmdRomFont        Command = 0xFFFFFF3F
	CmdVideoStart     Command = 0xFFFFFF40
	CmdVideoFrame     Command = 0xFFFFFF41
	CmdSetBitmap      Command = 0xFFFFFF43
	CmdFlashErase     Command = 0xFFFFFF44
	CmdFlashWrite     Command = 0xFFFFFF45
	CmdFlashRead      Command = 0xFFFFFF46
	CmdFlashUpdate    Command = 0xFFFFFF47
	CmdFlashDetach    Command = 0xFFFFFF48
	CmdFlashAttach    Command = 0xFFFFFF49
	CmdFlashFast      Command = 0xFFFFFF4A
	CmdFlashSPIDesel  Command = 0xFFFFFF4B
	CmdFlashSPITx     Command = 0xFFFFFF4C
	CmdFlashSPIRx     Command = 0xFFFFFF4D
	CmdFlashSource    Command = 0xFFFFFF4E
	CmdClearCache     Command = 0xFFFFFF4F
	CmdInflate2       Command = 0xFFFFFF50
	CmdStartAnimation Command = 0xFFFFFF53
	CmdVideoStartF    Command = 0xFFFFFF5F
)

// IsCoprocessor reports whether c is a coprocessor opcode rather than a
// plain display list word.
func (c Command) IsCoprocessor() bool {
	return c&0xFFFFFF00 == 0xFFFFFF00
}

// Option modifies the behaviour of widget and text commands. Several names
// share a value because the meaning depends on the command.
type Option uint16

const (
	OptNone       Option = 0
	Opt3D         Option = 0
	OptRGB565     Option = 0
	OptMono       Option = 1
	OptNoDL       Option = 2
	OptNoTear     Option = 4
	OptFullScreen Option = 8
	OptMediaFIFO  Option = 16
	OptSound      Option = 32
	OptFlat       Option = 256
	OptSigned     Option = 256
	OptDither     Option = 256
	OptCenterX    Option = 512
	OptCenterY    Option = 1024
	OptCenter     Option = 1536
	OptRightX     Option = 2048
	OptNoBack     Option = 4096
	OptFormat     Option = 4096
	OptFill       Option = 8192
	OptNoTicks    Option = 8192
	OptNoHands    Option = 16384
	OptNoPointer  Option = 16384
	OptNoSecs     Option = 32768
)

// Font is a ROM font handle.
type Font uint8

const (
	Font0 Font = 16 + iota
	Font1
	Font2
	Font3
	Font4
	Font5
	Font6
	Font7
	Font8
	Font9
	Font10
	Font11
	Font12
	Font13
	Font14
	Font15
	Font16
	Font17
	Font18
)

// Valid reports whether f names one of the ROM fonts.
func (f Font) Valid() bool {
	return f >= Font0 && f <= Font18
}

// PixelFormat is a BITMAP_LAYOUT pixel format.
type PixelFormat uint8

const (
	ARGB1555     PixelFormat = 0
	L1           PixelFormat = 1
	L4           PixelFormat = 2
	L8           PixelFormat = 3
	RGB332       PixelFormat = 4
	ARGB2        PixelFormat = 5
	ARGB4        PixelFormat = 6
	RGB565       PixelFormat = 7
	Text8x8      PixelFormat = 9
	TextVGA      PixelFormat = 10
	Bargraph     PixelFormat = 11
	Paletted565  PixelFormat = 14
	Paletted4444 PixelFormat = 15
	Paletted8    PixelFormat = 16
	L2           PixelFormat = 17
	GLFormat     PixelFormat = 31
)

// LineStride returns the number of bytes in one row of a bitmap of the given
// width. Sub-byte formats round up to a whole byte.
func (p PixelFormat) LineStride(width uint16) (uint32, error) {
	w := uint32(width)
	switch p {
	case L1:
		return (w + 7) / 8, nil
	case L2:
		return (w + 3) / 4, nil
	case L4:
		return (w + 1) / 2, nil
	case L8, RGB332, ARGB2, Paletted565, Paletted4444, Paletted8:
		return w, nil
	case ARGB1555, ARGB4, RGB565:
		return 2 * w, nil
	}
	return 0, fmt.Errorf("bt81x: no line stride for pixel format %d: %w", p, ErrInvalidParameter)
}

// clockSelect maps a system clock in Hz to the CLKSEL host command
// parameter.
var clockSelect = map[uint64]uint8{
	12_000_000: 0x02,
	24_000_000: 0x03,
	36_000_000: 0x04,
	48_000_000: 0x44,
	60_000_000: 0x45,
	72_000_000: 0x46,
}
