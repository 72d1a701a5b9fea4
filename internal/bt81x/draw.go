package bt81x

import (
	"encoding/binary"
	"fmt"
	"image"
	"unicode/utf8"

	"evepanel/internal/convert"
)

// Area is a rectangle anchored at Origin.
type Area struct {
	Origin image.Point
	Width  uint16
	Height uint16
}

// Size returns the number of pixels covered.
func (a Area) Size() uint32 {
	return uint32(a.Width) * uint32(a.Height)
}

func (a Area) origin() uint32 {
	return xy(uint16(a.Origin.X), uint16(a.Origin.Y))
}

func (a Area) extent() uint32 {
	return xy(a.Width, a.Height)
}

// TouchEvent is one read of the touch tag registers.
type TouchEvent struct {
	Tag uint8
	X   uint16
	Y   uint16
}

// Point returns the touch position.
func (t TouchEvent) Point() image.Point {
	return image.Pt(int(t.X), int(t.Y))
}

// CopyFormat selects how MemoryCopy lays out what it reads.
type CopyFormat uint8

const (
	// CopyARGB4 copies the raw 16-bit ARGB4 pixels of a snapshot.
	CopyARGB4 CopyFormat = iota + 1
	// CopyGreyscale converts each ARGB4 pixel to one grey byte.
	CopyGreyscale
)

// StartDisplayList opens a new display list and clears colour, stencil and
// tag buffers.
func (d *Driver) StartDisplayList() error {
	if err := d.Append(CmdDLStart, nil, false); err != nil {
		return err
	}
	return d.DL(Clear(true, true, true))
}

// CommitDisplayList ends the display list and swaps it onto the screen.
func (d *Driver) CommitDisplayList() error {
	if err := d.DL(Display()); err != nil {
		return err
	}
	return d.Append(CmdSwap, nil, true)
}

// ClearScreen fills the screen with rgb.
func (d *Driver) ClearScreen(rgb uint32) error {
	if err := d.StartDisplayList(); err != nil {
		return err
	}
	if err := d.DL(ClearColorRGB(rgb)); err != nil {
		return err
	}
	if err := d.DL(Clear(true, true, true)); err != nil {
		return err
	}
	return d.CommitDisplayList()
}

// SetForegroundColour sets the coprocessor foreground colour used by widgets.
func (d *Driver) SetForegroundColour(rgb uint32) error {
	return d.Append(CmdFgColor, []uint32{rgb}, false)
}

// SetBackgroundColour sets the coprocessor background colour used by widgets.
func (d *Driver) SetBackgroundColour(rgb uint32) error {
	return d.Append(CmdBgColor, []uint32{rgb}, false)
}

// SetDrawColour sets the colour of the next primitives.
func (d *Driver) SetDrawColour(rgb uint32) error {
	return d.DL(ColorRGB(rgb))
}

// EnableTouchTag tags every following object with tag.
func (d *Driver) EnableTouchTag(tag uint8) error {
	if err := d.DL(TagMask(true)); err != nil {
		return err
	}
	return d.DL(Tag(tag))
}

// DisableTouchTag stops tagging the following objects.
func (d *Driver) DisableTouchTag() error {
	return d.DL(TagMask(false))
}

// DrawText draws text at the given point. size is the text budget in bytes:
// text longer than size is cut to at most size bytes on a character
// boundary, and the command
// always carries ceil(size/4) zero padded words.
func (d *Driver) DrawText(at image.Point, font Font, rgb uint32, opts Option, size int, text string) error {
	if !font.Valid() {
		return fmt.Errorf("bt81x: font %d: %w", font, ErrInvalidParameter)
	}
	if size <= 0 {
		return fmt.Errorf("bt81x: text size %d: %w", size, ErrInvalidParameter)
	}
	if err := d.DL(ColorRGB(rgb)); err != nil {
		return err
	}
	params := []uint32{
		xy(uint16(at.X), uint16(at.Y)),
		uint32(opts)<<16 | uint32(font),
	}
	return d.Append(CmdText, append(params, textWords(text, size)...), false)
}

// DrawButton draws a labelled button filling area. size follows DrawText.
func (d *Driver) DrawButton(area Area, font Font, opts Option, size int, text string) error {
	if !font.Valid() {
		return fmt.Errorf("bt81x: font %d: %w", font, ErrInvalidParameter)
	}
	if size <= 0 {
		return fmt.Errorf("bt81x: text size %d: %w", size, ErrInvalidParameter)
	}
	params := []uint32{
		area.origin(),
		area.extent(),
		uint32(opts)<<16 | uint32(font),
	}
	return d.Append(CmdButton, append(params, textWords(text, size)...), false)
}

// textWords packs at most size bytes of text into ceil(size/4) little
// endian words, zero padded.
func textWords(text string, size int) []uint32 {
	n := (size + 3) / 4
	b := make([]byte, 4*n)
	copy(b, CutText(text, size))
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return words
}

// CutText shortens text to at most n bytes without splitting a UTF-8
// sequence.
func CutText(text string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// maxVertex is the largest pixel coordinate VERTEX2F reaches at the
// default 1/16 pixel precision.
const maxVertex = 0x3FFF / 16

// StartFreeHandSketch turns area into a canvas the chip draws touches
// into. Only L1 and L8 are accepted, and the area must lie within
// 0..1023 on both axes. The canvas lives at the start of RAM_G and uses a
// bitmap handle from the arena until StopPeriodicOperation. The display
// list is left open.
func (d *Driver) StartFreeHandSketch(area Area, brush, paper uint32, format PixelFormat) error {
	if format != L1 && format != L8 {
		return fmt.Errorf("bt81x: sketch pixel format %d: %w", format, ErrInvalidParameter)
	}
	o := area.Origin
	if o.X < 0 || o.Y < 0 || o.X+int(area.Width) > maxVertex || o.Y+int(area.Height) > maxVertex {
		return fmt.Errorf("bt81x: sketch area at %v size %dx%d out of vertex range: %w", o, area.Width, area.Height, ErrInvalidParameter)
	}
	if d.sketch != 0 {
		return fmt.Errorf("bt81x: sketch already running on handle %d: %w", d.sketch, ErrLimitReached)
	}
	stride, err := format.LineStride(area.Width)
	if err != nil {
		return err
	}
	src, err := BitmapSource(RamG.Base)
	if err != nil {
		return err
	}
	handle, err := d.handles.alloc()
	if err != nil {
		return err
	}

	x0, y0 := int32(area.Origin.X), int32(area.Origin.Y)
	x1, y1 := x0+int32(area.Width), y0+int32(area.Height)
	seq := []struct {
		cmd    Command
		params []uint32
	}{
		{Command(ColorRGB(paper)), nil},
		{CmdSketch, []uint32{area.origin(), area.extent(), RamG.Base, uint32(format)}},
		{CmdMemZero, []uint32{RamG.Base, stride * uint32(area.Height)}},
		{Command(BitmapHandle(uint32(handle))), nil},
		{Command(src), nil},
		{Command(BitmapLayout(format, stride, uint32(area.Height))), nil},
		{Command(BitmapSize(Nearest, Border, Border, uint32(area.Width), uint32(area.Height))), nil},
		{Command(LineWidth(16)), nil},
		{Command(Begin(Rects)), nil},
		{Command(Vertex2F(x0*16, y0*16)), nil},
		{Command(Vertex2F(x1*16, y1*16)), nil},
		{Command(ColorRGB(brush)), nil},
		{Command(Begin(Bitmaps)), nil},
		{Command(Vertex2F(x0*16, y0*16)), nil},
		{Command(End()), nil},
	}
	for _, s := range seq {
		if err := d.Append(s.cmd, s.params, false); err != nil {
			d.handles.release(handle)
			return err
		}
	}
	d.sketch = handle
	d.canvas = stride * uint32(area.Height)
	return nil
}

// StopPeriodicOperation stops a running sketch, spinner or screensaver and
// frees the sketch's bitmap handle.
func (d *Driver) StopPeriodicOperation() error {
	if err := d.Append(CmdStop, nil, true); err != nil {
		return err
	}
	if d.sketch != 0 {
		d.handles.release(d.sketch)
		d.sketch = 0
		d.canvas = 0
	}
	return nil
}

// FreeRamG returns the first 4 byte aligned RAM_G address past the canvas
// of a running sketch, or the start of RAM_G when no sketch runs.
func (d *Driver) FreeRamG() uint32 {
	return RamG.Base + (d.canvas+3)&^3
}

// SaveScreenToRamG snapshots area of the current frame as ARGB4 into
// RAM_G at addr. The range addr..addr+area.Size() must end strictly inside
// RAM_G.
func (d *Driver) SaveScreenToRamG(addr uint32, area Area) error {
	if !RamG.ContainsRange(addr, uint64(area.Size())) {
		return fmt.Errorf("bt81x: snapshot of %d pixels at %#x leaves RAM_G: %w", area.Size(), addr, ErrInvalidParameter)
	}
	return d.Append(CmdSnapshot2, []uint32{uint32(ARGB4), addr, area.origin(), area.extent()}, true)
}

// MemoryCopy fills buf from chip memory starting at addr using 4 byte
// reads. It returns the number of bytes placed in buf, which is short only
// when a read fails.
func (d *Driver) MemoryCopy(format CopyFormat, addr uint32, buf []byte) (int, error) {
	switch format {
	case CopyARGB4:
		n := 0
		for n < len(buf) {
			v, err := d.read(addr+uint32(n), 4, defaultTimeout)
			if err != nil {
				return n, err
			}
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], v)
			n += copy(buf[n:], w[:])
		}
		return n, nil
	case CopyGreyscale:
		// Two ARGB4 pixels per word, one grey byte per pixel.
		n := 0
		for n < len(buf) {
			v, err := d.read(addr+uint32(2*n), 4, defaultTimeout)
			if err != nil {
				return n, err
			}
			buf[n] = convert.ARGB4Grey(uint16(v))
			n++
			if n < len(buf) {
				buf[n] = convert.ARGB4Grey(uint16(v >> 16))
				n++
			}
		}
		return n, nil
	}
	return 0, fmt.Errorf("bt81x: copy format %d: %w", format, ErrInvalidParameter)
}

// ToggleBacklight drives the backlight PWM. brightness is a percentage.
func (d *Driver) ToggleBacklight(on bool, brightness uint8) error {
	if brightness > 100 {
		return fmt.Errorf("bt81x: brightness %d%%: %w", brightness, ErrInvalidParameter)
	}
	var dir, level, hz, duty uint16
	if on {
		dir, level, hz = 0x8000, 0x8000, 250
		duty = uint16(uint32(brightness) * 128 / 100)
	}
	if err := d.write16(RegGPIOXDir, dir, verifyRetries); err != nil {
		return err
	}
	if err := d.write16(RegGPIOX, level, verifyRetries); err != nil {
		return err
	}
	if err := d.write16(RegPwmHz, hz, verifyRetries); err != nil {
		return err
	}
	return d.write16(RegPwmDuty, duty, verifyRetries)
}

// ToggleDisplay starts or stops the pixel clock.
func (d *Driver) ToggleDisplay(on bool) error {
	var div uint8
	if on {
		div = d.pclkDivisor
	}
	return d.write8(RegPclk, div, verifyRetries)
}

// SetTouchThreshold sets the resistive touch pressure threshold.
func (d *Driver) SetTouchThreshold(threshold uint16) error {
	return d.write16(RegTouchRzThresh, threshold, verifyRetries)
}

// CheckForScreenTouches reports where the object carrying tag was touched.
// It returns ErrNegative when the touch tag register holds another tag.
func (d *Driver) CheckForScreenTouches(tag uint8) (TouchEvent, error) {
	got, err := d.read8(RegTouchTag)
	if err != nil {
		return TouchEvent{}, err
	}
	pos, err := d.read32(RegTouchTagXY)
	if err != nil {
		return TouchEvent{}, err
	}
	if got != tag {
		return TouchEvent{}, fmt.Errorf("bt81x: touched tag %d, want %d: %w", got, tag, ErrNegative)
	}
	return TouchEvent{Tag: got, X: uint16(pos >> 16), Y: uint16(pos)}, nil
}

// TouchedTag returns the tag under the finger. It returns ErrNegative when
// nothing touches the panel.
func (d *Driver) TouchedTag() (uint8, error) {
	tag, err := d.read8(RegTouchTag)
	if err != nil {
		return 0, err
	}
	raw, err := d.read32(RegTouchRawXY)
	if err != nil {
		return 0, err
	}
	if raw == 0xFFFFFFFF {
		return 0, fmt.Errorf("bt81x: no touch: %w", ErrNegative)
	}
	return tag, nil
}
