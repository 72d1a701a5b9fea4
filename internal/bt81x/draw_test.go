package bt81x

import (
	"encoding/binary"
	"errors"
	"image"
	"slices"
	"strings"
	"testing"
)

func TestClearScreen(t *testing.T) {
	d, f := newTestDriver()
	if err := d.ClearScreen(0x102030); err != nil {
		t.Fatal(err)
	}
	want := []uint32{
		uint32(CmdDLStart),
		Clear(true, true, true),
		ClearColorRGB(0x102030),
		Clear(true, true, true),
		Display(),
		uint32(CmdSwap),
	}
	if got := f.FIFOWords(); !slices.Equal(got, want) {
		t.Fatalf("fifo = %#x, want %#x", got, want)
	}
	if f.FIFOTxns != 1 {
		t.Fatalf("fifo writes = %d, want 1", f.FIFOTxns)
	}
}

func TestDrawTextTruncates(t *testing.T) {
	d, f := newTestDriver()
	text := strings.Repeat("0123456789", 4)

	if err := d.DrawText(image.Pt(10, 20), Font11, 0xFFFFFF, OptCenter, 32, text); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	words := f.FIFOWords()
	if len(words) != 12 {
		t.Fatalf("words = %d, want 12", len(words))
	}
	if words[0] != ColorRGB(0xFFFFFF) || words[1] != uint32(CmdText) {
		t.Fatalf("header = %#x", words[:2])
	}
	if words[2] != 20<<16|10 {
		t.Fatalf("position = %#x", words[2])
	}
	if words[3] != uint32(OptCenter)<<16|uint32(Font11) {
		t.Fatalf("font and options = %#x", words[3])
	}
	var b []byte
	for _, w := range words[4:] {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	if string(b) != text[:32] {
		t.Fatalf("text = %q, want %q", b, text[:32])
	}
}

func TestDrawTextRejects(t *testing.T) {
	tests := []struct {
		name string
		font Font
		size int
	}{
		{"font below rom range", Font(15), 4},
		{"font above rom range", Font(35), 4},
		{"zero size", Font0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDriver()
			err := d.DrawText(image.Pt(0, 0), tt.font, 0, OptNone, tt.size, "x")
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("DrawText error = %v, want ErrInvalidParameter", err)
			}
			if d.Pending() != 0 {
				t.Fatal("rejected text staged commands")
			}
		})
	}
}

func TestTextWords(t *testing.T) {
	tests := []struct {
		text string
		size int
		want []uint32
	}{
		{"", 1, []uint32{0}},
		{"abcd", 4, []uint32{0x64636261}},
		{"abc", 8, []uint32{0x00636261, 0}},
		{"abcdef", 5, []uint32{0x64636261, 0x65}},
		{"a\u00e9", 2, []uint32{0x61}},
		{"\u00e9\u00e9", 3, []uint32{0xA9C3}},
	}
	for _, tt := range tests {
		if got := textWords(tt.text, tt.size); !slices.Equal(got, tt.want) {
			t.Errorf("textWords(%q, %d) = %#x, want %#x", tt.text, tt.size, got, tt.want)
		}
	}
}

func TestDrawButton(t *testing.T) {
	d, f := newTestDriver()
	area := Area{Origin: image.Pt(5, 6), Width: 100, Height: 40}
	if err := d.DrawButton(area, Font8, OptFlat, 8, "Refresh"); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	words := f.FIFOWords()
	want := []uint32{uint32(CmdButton), 6<<16 | 5, 40<<16 | 100, uint32(OptFlat)<<16 | uint32(Font8)}
	if len(words) != 6 || !slices.Equal(words[:4], want) {
		t.Fatalf("fifo = %#x", words)
	}
}

func TestSaveScreenToRamGBounds(t *testing.T) {
	tests := []struct {
		name    string
		addr    uint32
		area    Area
		wantErr bool
	}{
		{"start of RAM_G", 0, Area{Width: 100, Height: 100}, false},
		{"ends one before the end", RamG.End() - 10001, Area{Width: 100, Height: 100}, false},
		{"ends exactly at the end", RamG.End() - 10000, Area{Width: 100, Height: 100}, true},
		{"starts past RAM_G", RamG.End(), Area{Width: 1, Height: 1}, true},
		{"address near overflow", 0xFFFFFFF0, Area{Width: 100, Height: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, f := newTestDriver()
			err := d.SaveScreenToRamG(tt.addr, tt.area)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("error = %v, want ErrInvalidParameter", err)
				}
				if f.FIFOTxns != 0 {
					t.Fatal("rejected snapshot reached the chip")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			words := f.FIFOWords()
			want := []uint32{uint32(CmdSnapshot2), uint32(ARGB4), tt.addr, tt.area.origin(), tt.area.extent()}
			if f.FIFOTxns != 1 || !slices.Equal(words, want) {
				t.Fatalf("fifo = %#x, want %#x", words, want)
			}
		})
	}
}

func TestCheckForScreenTouches(t *testing.T) {
	boom := errors.New("spi gone")
	tests := []struct {
		name      string
		tag       uint8
		fail      Register
		want      TouchEvent
		wantErr   error
		notWanted error
	}{
		{name: "match", tag: 7, want: TouchEvent{Tag: 7, X: 0x0120, Y: 0x0040}},
		{name: "other tag", tag: 8, wantErr: ErrNegative},
		{name: "tag read fails", tag: 7, fail: RegTouchTag, wantErr: boom, notWanted: ErrNegative},
		{name: "position read fails", tag: 7, fail: RegTouchTagXY, wantErr: boom, notWanted: ErrNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, f := newTestDriver()
			f.set8(RegTouchTag, 7)
			f.set32(RegTouchTagXY, 0x01200040)
			if tt.fail != 0 {
				f.FailRead[tt.fail.Addr()] = boom
			}

			ev, err := d.CheckForScreenTouches(tt.tag)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.notWanted != nil && errors.Is(err, tt.notWanted) {
				t.Fatalf("error = %v, must not be %v", err, tt.notWanted)
			}
			if ev != tt.want {
				t.Fatalf("event = %+v, want %+v", ev, tt.want)
			}
		})
	}
}

func TestTouchedTag(t *testing.T) {
	d, f := newTestDriver()
	f.set8(RegTouchTag, 3)
	f.set32(RegTouchRawXY, 0x01000200)

	tag, err := d.TouchedTag()
	if err != nil || tag != 3 {
		t.Fatalf("TouchedTag = %d, %v; want 3", tag, err)
	}

	f.set32(RegTouchRawXY, 0xFFFFFFFF)
	if _, err := d.TouchedTag(); !errors.Is(err, ErrNegative) {
		t.Fatalf("untouched error = %v, want ErrNegative", err)
	}
}

func TestFreeHandSketchHandles(t *testing.T) {
	d, f := newTestDriver()
	area := Area{Origin: image.Pt(0, 160), Width: 100, Height: 50}

	if err := d.StartFreeHandSketch(area, 0x000000, 0xFFFFFF, L4); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("L4 sketch error = %v, want ErrInvalidParameter", err)
	}
	if err := d.StartFreeHandSketch(area, 0x000000, 0xFFFFFF, L1); err != nil {
		t.Fatal(err)
	}
	if err := d.StartFreeHandSketch(area, 0x000000, 0xFFFFFF, L1); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("second sketch error = %v, want ErrLimitReached", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	words := f.FIFOWords()
	if !slices.Contains(words, BitmapHandle(1)) {
		t.Fatalf("fifo %#x does not select handle 1", words)
	}
	i := slices.Index(words, uint32(CmdMemZero))
	if i < 0 || words[i+1] != RamG.Base || words[i+2] != 13*50 {
		t.Fatalf("memzero = %#x, want %d bytes", words[i:i+3], 13*50)
	}
	if got := bitmapVertex(words); got != Vertex2F(0, 160*16) {
		t.Fatalf("sketch bitmap vertex = %#x, want the area origin", got)
	}
	if got := d.FreeRamG(); got != 652 {
		t.Fatalf("FreeRamG while sketching = %d, want 652", got)
	}

	if err := d.StopPeriodicOperation(); err != nil {
		t.Fatal(err)
	}
	if last := f.FIFOWords(); last[len(last)-1] != uint32(CmdStop) {
		t.Fatal("CMD_STOP not sent")
	}
	h, err := d.AllocHandle()
	if err != nil || h != 1 {
		t.Fatalf("AllocHandle after stop = %d, %v; want 1", h, err)
	}
}

// bitmapVertex returns the vertex that follows BEGIN(BITMAPS).
func bitmapVertex(words []uint32) uint32 {
	i := slices.Index(words, Begin(Bitmaps))
	if i < 0 || i+1 >= len(words) {
		return 0
	}
	return words[i+1]
}

func TestFreeHandSketchPlacement(t *testing.T) {
	tests := []struct {
		name    string
		area    Area
		wantErr bool
	}{
		{"past the 9 bit range", Area{Origin: image.Pt(600, 300), Width: 100, Height: 100}, false},
		{"ends at the vertex limit", Area{Origin: image.Pt(923, 0), Width: 100, Height: 10}, false},
		{"ends past the vertex limit", Area{Origin: image.Pt(924, 0), Width: 100, Height: 10}, true},
		{"negative origin", Area{Origin: image.Pt(-1, 0), Width: 10, Height: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, f := newTestDriver()
			err := d.StartFreeHandSketch(tt.area, 0xFFFFFF, 0x000000, L8)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("error = %v, want ErrInvalidParameter", err)
				}
				if h, _ := d.AllocHandle(); h != 1 {
					t.Fatalf("rejected sketch kept a handle, next is %d", h)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if err := d.Flush(); err != nil {
				t.Fatal(err)
			}
			o := tt.area.Origin
			want := Vertex2F(int32(o.X)*16, int32(o.Y)*16)
			if got := bitmapVertex(f.FIFOWords()); got != want {
				t.Fatalf("bitmap vertex = %#x, want %#x", got, want)
			}
		})
	}
}

func TestMemoryCopy(t *testing.T) {
	d, f := newTestDriver()
	for i := uint32(0); i < 8; i++ {
		f.Mem[0x1000+i] = byte(i + 1)
	}

	buf := make([]byte, 6)
	n, err := d.MemoryCopy(CopyARGB4, 0x1000, buf)
	if err != nil || n != 6 {
		t.Fatalf("MemoryCopy = %d, %v", n, err)
	}
	if !slices.Equal(buf, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("buf = % x", buf)
	}
	if r := f.ReadsOf(0x1000) + f.ReadsOf(0x1004); r != 2 {
		t.Fatalf("reads = %d, want 2", r)
	}

	// white, black, white
	f.Set32(0x2000, 0xF000FFFF)
	f.Set32(0x2004, 0x0000FFFF)
	grey := make([]byte, 3)
	if n, err := d.MemoryCopy(CopyGreyscale, 0x2000, grey); err != nil || n != 3 {
		t.Fatalf("greyscale MemoryCopy = %d, %v", n, err)
	}
	if !slices.Equal(grey, []byte{255, 0, 255}) {
		t.Fatalf("grey = %v", grey)
	}

	if _, err := d.MemoryCopy(CopyFormat(9), 0, buf); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("bad format error = %v", err)
	}
}

func TestToggleBacklight(t *testing.T) {
	d, f := newTestDriver()
	if err := d.ToggleBacklight(true, 50); err != nil {
		t.Fatal(err)
	}
	if f.get16(RegPwmDuty) != 64 || f.get16(RegPwmHz) != 250 || f.get16(RegGPIOX) != 0x8000 || f.get16(RegGPIOXDir) != 0x8000 {
		t.Fatal("backlight registers not set")
	}
	if err := d.ToggleBacklight(false, 50); err != nil {
		t.Fatal(err)
	}
	if f.get16(RegPwmDuty) != 0 || f.get16(RegGPIOX) != 0 {
		t.Fatal("backlight not switched off")
	}
	if err := d.ToggleBacklight(true, 101); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("brightness 101 error = %v", err)
	}
}

func TestToggleDisplay(t *testing.T) {
	d, f := newTestDriver()
	d.pclkDivisor = 2
	if err := d.ToggleDisplay(true); err != nil {
		t.Fatal(err)
	}
	if f.Mem[RegPclk.Addr()] != 2 {
		t.Fatalf("REG_PCLK = %d, want 2", f.Mem[RegPclk.Addr()])
	}
	if err := d.ToggleDisplay(false); err != nil {
		t.Fatal(err)
	}
	if f.Mem[RegPclk.Addr()] != 0 {
		t.Fatal("pixel clock still running")
	}
}
