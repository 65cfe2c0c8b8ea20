package pyramid

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// DebugAtlas packs every level into one image: level 0 on the left, levels
// 1.. stacked top to bottom in a column to its right. Nearer depths are
// brighter under either convention.
//
//	+--------+----+
//	|        | 1  |
//	|   0    +--+-+
//	|        |2 |
//	|        +-++
//	+--------+
func DebugAtlas(p *DepthPyramid) *image.Gray16 {
	l0 := &p.Levels[0]
	w := l0.Width
	if len(p.Levels) > 1 {
		w += p.Levels[1].Width
	}
	atlas := image.NewGray16(image.Rect(0, 0, w, l0.Height))

	x, y := 0, 0
	for k := range p.Levels {
		lv := &p.Levels[k]
		img := p.levelImage(lv)
		r := image.Rect(x, y, x+lv.Width, y+lv.Height)
		draw.Draw(atlas, r, img, image.Point{}, draw.Src)
		if k == 0 {
			x = lv.Width
		} else {
			y += lv.Height
		}
	}
	return atlas
}

func (p *DepthPyramid) levelImage(lv *Level) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, lv.Width, lv.Height))
	far := p.Convention.FarthestValue()
	for y := 0; y < lv.Height; y++ {
		for x := 0; x < lv.Width; x++ {
			// Distance from "infinitely far" in depth units is nearness.
			n := math.Abs(float64(lv.At(x, y) - far))
			n = min(max(n, 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(n * 0xffff)})
		}
	}
	return img
}

// WriteDebugPNG encodes the atlas as PNG, enlarged by scale with nearest
// neighbour filtering so single texels of the coarse levels stay visible.
func WriteDebugPNG(w io.Writer, p *DepthPyramid, scale int) error {
	atlas := DebugAtlas(p)
	if scale <= 1 {
		return png.Encode(w, atlas)
	}
	b := atlas.Bounds()
	dst := image.NewGray16(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), atlas, b, draw.Src, nil)
	return png.Encode(w, dst)
}
