// Package convert turns pixel data read back from the display controller
// into Go images, and colours from the outside world into 0xRRGGBB words.
package convert

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ARGB4ToNRGBA decodes a snapshot of w x h little endian ARGB4 pixels.
//
// Each pixel is 16 bits: alpha in bits 15..12, then red, green and blue in
// four bits each. Nibbles are widened by repetition (0xA -> 0xAA).
func ARGB4ToNRGBA(data []byte, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("convert: bad size %dx%d", w, h)
	}
	if len(data) < 2*w*h {
		return nil, fmt.Errorf("convert: need %d bytes for %dx%d ARGB4, got %d", 2*w*h, w, h, len(data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := 2 * (y*w + x)
			p := uint16(data[i]) | uint16(data[i+1])<<8
			c := argb4(p)
			o := 4 * x
			row[o+0] = c.R
			row[o+1] = c.G
			row[o+2] = c.B
			row[o+3] = c.A
		}
	}
	return img, nil
}

// GreyToImage wraps one byte per pixel greyscale data.
func GreyToImage(data []byte, w, h int) (*image.Gray, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("convert: bad size %dx%d", w, h)
	}
	if len(data) < w*h {
		return nil, fmt.Errorf("convert: need %d bytes for %dx%d grey, got %d", w*h, w, h, len(data))
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, data[:w*h])
	return img, nil
}

func argb4(p uint16) color.NRGBA {
	widen := func(n uint16) uint8 {
		n &= 0xF
		return uint8(n<<4 | n)
	}
	return color.NRGBA{R: widen(p >> 8), G: widen(p >> 4), B: widen(p), A: widen(p >> 12)}
}

// ARGB4Grey converts one ARGB4 pixel to an 8-bit grey level: Rec. 709 luma
// of the linear channels, then sRGB gamma compression. Alpha is ignored.
func ARGB4Grey(p uint16) uint8 {
	r := float64((p>>8)&0xF) / 15
	g := float64((p>>4)&0xF) / 15
	b := float64(p&0xF) / 15

	lin := 0.2126*r + 0.7152*g + 0.0722*b
	var v float64
	if lin <= 0.0031308 {
		v = 12.92 * lin
	} else {
		v = 1.055*math.Pow(lin, 1/2.4) - 0.055
	}
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}

// ParseHexColour accepts "#RRGGBB", "RRGGBB" or "0xRRGGBB".
func ParseHexColour(s string) (uint32, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "#")
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	if len(t) != 6 {
		return 0, fmt.Errorf("convert: colour %q is not RRGGBB", s)
	}
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("convert: colour %q: %w", s, err)
	}
	return uint32(v), nil
}

// HexColour converts c to a 0xRRGGBB word, dropping alpha.
func HexColour(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.R)<<16 | uint32(n.G)<<8 | uint32(n.B)
}
