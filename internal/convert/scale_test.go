package convert

import (
	"image"
	"image/color"
	"testing"
)

func TestScale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	red := color.NRGBA{R: 0xFF, A: 0xFF}
	blue := color.NRGBA{B: 0xFF, A: 0xFF}
	src.SetNRGBA(0, 0, red)
	src.SetNRGBA(1, 0, blue)

	dst, err := Scale(src, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := dst.Bounds().Size(); got != image.Pt(6, 3) {
		t.Fatalf("size = %v, want 6x3", got)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 6; x++ {
			want := red
			if x >= 3 {
				want = blue
			}
			if got := dst.NRGBAAt(x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestScaleRejectsFactor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	for _, f := range []int{0, -1, MaxScale + 1} {
		if _, err := Scale(src, f); err == nil {
			t.Errorf("factor %d accepted", f)
		}
	}
}
