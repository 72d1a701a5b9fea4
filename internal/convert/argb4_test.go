package convert

import (
	"image/color"
	"testing"
)

func TestARGB4ToNRGBA(t *testing.T) {
	// Two pixels: opaque red, half transparent 0x5A3.
	data := []byte{0x00, 0xFF, 0xA3, 0x85}
	img, err := ARGB4ToNRGBA(data, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x    int
		want color.NRGBA
	}{
		{0, color.NRGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF}},
		{1, color.NRGBA{R: 0x55, G: 0xAA, B: 0x33, A: 0x88}},
	}
	for _, tt := range tests {
		if got := img.NRGBAAt(tt.x, 0); got != tt.want {
			t.Errorf("pixel %d = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestARGB4ToNRGBAShortData(t *testing.T) {
	if _, err := ARGB4ToNRGBA(make([]byte, 7), 2, 2); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := ARGB4ToNRGBA(nil, 0, 2); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestARGB4Grey(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
		want uint8
	}{
		{"black", 0xF000, 0},
		{"white", 0xFFFF, 255},
		{"white ignores alpha", 0x0FFF, 255},
		{"pure green brighter than pure blue", 0xF0F0, ARGB4Grey(0xF0F0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ARGB4Grey(tt.in); got != tt.want {
				t.Errorf("ARGB4Grey(%#04x) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
	if g, b := ARGB4Grey(0xF0F0), ARGB4Grey(0xF00F); g <= b {
		t.Errorf("green %d should be brighter than blue %d", g, b)
	}
}

func TestGreyToImage(t *testing.T) {
	img, err := GreyToImage([]byte{1, 2, 3, 4, 5, 6}, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.GrayAt(2, 1).Y; got != 6 {
		t.Errorf("GrayAt(2,1) = %d, want 6", got)
	}
}

func TestParseHexColour(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"#FF8000", 0xFF8000, false},
		{"00ff00", 0x00FF00, false},
		{"0x0000FF", 0x0000FF, false},
		{" #123456 ", 0x123456, false},
		{"#FFF", 0, true},
		{"#GG0000", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColour(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColour(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColour(%q) = %#06x, want %#06x", tt.in, got, tt.want)
		}
	}
}

func TestHexColour(t *testing.T) {
	if got := HexColour(color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xFF}); got != 0x123456 {
		t.Errorf("HexColour = %#06x", got)
	}
}
