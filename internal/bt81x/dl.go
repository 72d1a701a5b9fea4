package bt81x

import "fmt"

// Primitive is a BEGIN graphics primitive.
type Primitive uint8

const (
	Bitmaps Primitive = 1 + iota
	Points
	Lines
	LineStrip
	EdgeStripR
	EdgeStripL
	EdgeStripA
	EdgeStripB
	Rects
)

// Filter selects BITMAP_SIZE sampling.
type Filter uint8

const (
	Nearest Filter = iota
	Bilinear
)

// Wrap selects BITMAP_SIZE edge behaviour.
type Wrap uint8

const (
	Border Wrap = iota
	Repeat
)

// BlendFactor is a BLEND source or destination factor.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendDstAlpha
	BlendOneMinusSrcAlpha
	BlendOneMinusDstAlpha
)

// Display list encoders. Each returns one 32-bit display list word; the
// operands are masked to their field width.

// AlphaFunc sets the alpha test function and reference value.
func AlphaFunc(fn, ref uint32) uint32 {
	return 9<<24 | (fn&7)<<8 | ref&0xFF
}

// Begin starts drawing primitive p.
func Begin(p Primitive) uint32 {
	return 0x1F<<24 | uint32(p)&0xF
}

// BitmapExtFormat sets an extended bitmap format such as ASTC.
func BitmapExtFormat(format uint32) uint32 {
	return 46<<24 | format&0xFFFF
}

// BitmapHandle selects the bitmap handle later commands configure and draw.
func BitmapHandle(handle uint32) uint32 {
	return 5<<24 | handle&0x1F
}

// BitmapLayout sets the format, line stride and height of the current bitmap.
func BitmapLayout(format PixelFormat, stride, height uint32) uint32 {
	return 7<<24 | (uint32(format)&0x1F)<<19 | (stride&0x3FF)<<9 | height&0x1FF
}

// BitmapLayoutH carries the high bits of the stride and height.
func BitmapLayoutH(stride, height uint32) uint32 {
	return 40<<24 | (stride&3)<<2 | height&3
}

// BitmapSize sets the on-screen size and sampling of the current bitmap.
func BitmapSize(filter Filter, wrapX, wrapY Wrap, width, height uint32) uint32 {
	return 8<<24 | (uint32(filter)&1)<<20 | (uint32(wrapX)&1)<<19 | (uint32(wrapY)&1)<<18 | (width&0x1FF)<<9 | height&0x1FF
}

// BitmapSizeH carries the high bits of the width and height.
func BitmapSizeH(width, height uint32) uint32 {
	return 41<<24 | (width&3)<<2 | height&3
}

// BitmapSource points the current bitmap handle at graphics RAM or at
// external flash. Flash sources set bit 23 and are addressed in 32 byte
// blocks from the start of flash.
func BitmapSource(addr uint32) (uint32, error) {
	switch {
	case RamG.Contains(addr):
		return 1<<24 | addr&0x7FFFFF, nil
	case Flash.Contains(addr):
		if (addr-Flash.Base)%32 != 0 {
			return 0, fmt.Errorf("bt81x: flash bitmap source %#x not 32 byte aligned: %w", addr, ErrInvalidParameter)
		}
		return 1<<24 | 1<<23 | ((addr-Flash.Base)/32)&0x7FFFFF, nil
	}
	return 0, fmt.Errorf("bt81x: bitmap source %#x outside RAM_G and flash: %w", addr, ErrInvalidParameter)
}

// BitmapSwizzle maps colour channels of a GLFORMAT bitmap.
func BitmapSwizzle(r, g, b, a uint32) uint32 {
	return 47<<24 | (r&7)<<9 | (g&7)<<6 | (b&7)<<3 | a&7
}

// BitmapTransformA sets coefficient A of the bitmap transform matrix.
func BitmapTransformA(precision uint32, v int32) uint32 {
	return 21<<24 | (precision&1)<<17 | uint32(v)&0x1FFFF
}

// BitmapTransformB sets coefficient B of the bitmap transform matrix.
func BitmapTransformB(precision uint32, v int32) uint32 {
	return 22<<24 | (precision&1)<<17 | uint32(v)&0x1FFFF
}

// BitmapTransformC sets coefficient C of the bitmap transform matrix.
func BitmapTransformC(v int32) uint32 {
	return 23<<24 | uint32(v)&0xFFFFFF
}

// BitmapTransformD sets coefficient D of the bitmap transform matrix.
func BitmapTransformD(precision uint32, v int32) uint32 {
	return 24<<24 | (precision&1)<<17 | uint32(v)&0x1FFFF
}

// BitmapTransformE sets coefficient E of the bitmap transform matrix.
func BitmapTransformE(precision uint32, v int32) uint32 {
	return 25<<24 | (precision&1)<<17 | uint32(v)&0x1FFFF
}

// BitmapTransformF sets coefficient F of the bitmap transform matrix.
func BitmapTransformF(v int32) uint32 {
	return 26<<24 | uint32(v)&0xFFFFFF
}

// Blend sets the pixel blending factors.
func Blend(src, dst BlendFactor) uint32 {
	return 11<<24 | (uint32(src)&7)<<3 | uint32(dst)&7
}

// Call runs the display list at word offset dest, then returns.
func Call(dest uint32) uint32 {
	return 29<<24 | dest&0xFFFF
}

// Cell selects the bitmap cell for VERTEX2F.
func Cell(cell uint32) uint32 {
	return 6<<24 | cell&0x7F
}

// Clear clears the selected buffers.
func Clear(colour, stencil, tag bool) uint32 {
	return 0x26<<24 | b2u(colour)<<2 | b2u(stencil)<<1 | b2u(tag)
}

// ClearColorA sets the alpha Clear writes.
func ClearColorA(alpha uint32) uint32 {
	return 15<<24 | alpha&0xFF
}

// ClearColorRGB sets the colour Clear writes.
func ClearColorRGB(rgb uint32) uint32 {
	return 2<<24 | rgb&0xFFFFFF
}

// ClearStencil sets the stencil value Clear writes.
func ClearStencil(s uint32) uint32 {
	return 17<<24 | s&0xFF
}

// ClearTag sets the tag value Clear writes.
func ClearTag(t uint32) uint32 {
	return 18<<24 | t&0xFF
}

// ColorA sets the current alpha.
func ColorA(alpha uint32) uint32 {
	return 16<<24 | alpha&0xFF
}

// ColorMask enables or disables writes to each colour channel.
func ColorMask(r, g, b, a bool) uint32 {
	return 32<<24 | b2u(r)<<3 | b2u(g)<<2 | b2u(b)<<1 | b2u(a)
}

// ColorRGB sets the current drawing colour.
func ColorRGB(rgb uint32) uint32 {
	return 4<<24 | rgb&0xFFFFFF
}

// Display ends the display list.
func Display() uint32 {
	return 0
}

// End finishes the current primitive.
func End() uint32 {
	return 33 << 24
}

// IntFrr raises the interrupt flag when the list is executed.
func IntFrr() uint32 {
	return 48 << 24
}

// Jump continues execution at word offset dest.
func Jump(dest uint32) uint32 {
	return 30<<24 | dest&0xFFFF
}

// LineWidth is in 1/16 pixel units.
func LineWidth(w uint32) uint32 {
	return 14<<24 | w&0xFFF
}

// Macro runs the display list command held in REG_MACRO_m.
func Macro(m uint32) uint32 {
	return 37<<24 | m&1
}

// Nop does nothing.
func Nop() uint32 {
	return 45 << 24
}

// PaletteSource sets the palette address for paletted bitmaps.
func PaletteSource(addr uint32) uint32 {
	return 42<<24 | addr&0x3FFFFF
}

// PointSize sets the point radius in 1/16 pixel units.
func PointSize(size uint32) uint32 {
	return 13<<24 | size&0x1FFF
}

// RestoreContext pops the graphics context.
func RestoreContext() uint32 {
	return 35 << 24
}

// Return ends a list entered with Call.
func Return() uint32 {
	return 36 << 24
}

// SaveContext pushes the graphics context.
func SaveContext() uint32 {
	return 34 << 24
}

// ScissorSize sets the size of the scissor clip rectangle.
func ScissorSize(w, h uint32) uint32 {
	return 28<<24 | (w&0xFFF)<<12 | h&0xFFF
}

// ScissorXY sets the top left corner of the scissor clip rectangle.
func ScissorXY(x, y uint32) uint32 {
	return 27<<24 | (x&0x7FF)<<11 | y&0x7FF
}

// StencilFunc sets the stencil test function, reference and mask.
func StencilFunc(fn, ref, mask uint32) uint32 {
	return 10<<24 | (fn&7)<<16 | (ref&0xFF)<<8 | mask&0xFF
}

// StencilMask selects the stencil bits that can be written.
func StencilMask(mask uint32) uint32 {
	return 19<<24 | mask&0xFF
}

// StencilOp sets the stencil action on test failure and success.
func StencilOp(sfail, spass uint32) uint32 {
	return 12<<24 | (sfail&7)<<3 | spass&7
}

// Tag sets the touch tag of following objects.
func Tag(t uint8) uint32 {
	return 3<<24 | uint32(t)
}

// TagMask enables or disables tag buffer writes.
func TagMask(enabled bool) uint32 {
	return 20<<24 | b2u(enabled)
}

// Vertex2F places a vertex in 1/16 pixel units (the default vertex format).
func Vertex2F(x, y int32) uint32 {
	return 1<<30 | (uint32(x)&0x7FFF)<<15 | uint32(y)&0x7FFF
}

// Vertex2II places a vertex at whole pixels 0..511 with a bitmap handle and cell.
func Vertex2II(x, y, handle, cell uint32) uint32 {
	return 2<<30 | (x&0x1FF)<<21 | (y&0x1FF)<<12 | (handle&0x1F)<<7 | cell&0x7F
}

// VertexFormat sets the fractional bits used by VERTEX2F.
func VertexFormat(frac uint32) uint32 {
	return 39<<24 | frac&7
}

// VertexTranslateX offsets following vertices horizontally, in 1/16 pixels.
func VertexTranslateX(x int32) uint32 {
	return 43<<24 | uint32(x)&0x1FFFF
}

// VertexTranslateY offsets following vertices vertically, in 1/16 pixels.
func VertexTranslateY(y int32) uint32 {
	return 44<<24 | uint32(y)&0x1FFFF
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// xy packs a coordinate pair the way coprocessor commands expect it: y in
// the high half, x in the low half.
func xy(x, y uint16) uint32 {
	return uint32(y)<<16 | uint32(x)
}
