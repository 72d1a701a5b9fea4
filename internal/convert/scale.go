package convert

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// MaxScale bounds the factor accepted by Scale.
const MaxScale = 8

// Scale enlarges src by an integer factor with nearest neighbour sampling,
// which keeps the ARGB4 pixel blocks of a snapshot sharp.
func Scale(src image.Image, factor int) (*image.NRGBA, error) {
	if factor < 1 || factor > MaxScale {
		return nil, fmt.Errorf("convert: scale factor %d not in 1..%d", factor, MaxScale)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}
