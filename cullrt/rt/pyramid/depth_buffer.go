package pyramid

import "fmt"

// DepthBuffer is a row-major depth image; row 0 is the top of the screen.
type DepthBuffer struct {
	Width  int
	Height int
	Data   []float32
}

func NewDepthBuffer(w, h int, clear float32) *DepthBuffer {
	d := &DepthBuffer{Width: w, Height: h, Data: make([]float32, w*h)}
	d.Clear(clear)
	return d
}

func (d *DepthBuffer) At(x, y int) float32 { return d.Data[y*d.Width+x] }

func (d *DepthBuffer) Set(x, y int, v float32) { d.Data[y*d.Width+x] = v }

func (d *DepthBuffer) Clear(v float32) {
	for i := range d.Data {
		d.Data[i] = v
	}
}

// FillRect writes v into [x0,x1)×[y0,y1), clipped to the buffer.
func (d *DepthBuffer) FillRect(x0, y0, x1, y1 int, v float32) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, d.Width), min(y1, d.Height)
	for y := y0; y < y1; y++ {
		row := d.Data[y*d.Width : (y+1)*d.Width]
		for x := x0; x < x1; x++ {
			row[x] = v
		}
	}
}

func (d *DepthBuffer) validate() error {
	if d == nil {
		return fmt.Errorf("nil depth buffer")
	}
	if len(d.Data) != d.Width*d.Height {
		return fmt.Errorf("depth buffer %dx%d has %d texels", d.Width, d.Height, len(d.Data))
	}
	return nil
}
