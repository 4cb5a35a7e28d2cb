package viscull

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/image/bmp"
)

var resultColors = map[QueryResult]color.RGBA{
	ResultInvalid:   {96, 96, 96, 255},
	ResultUnknown:   {255, 255, 0, 255},
	ResultVisible:   {0, 255, 0, 255},
	ResultInvisible: {255, 0, 0, 255},
}

var (
	noEntryColor = color.RGBA{0, 0, 160, 255}
	objectColor  = color.RGBA{255, 255, 255, 255}
)

// DumpImage writes a top down BMP of the tree seen along -Y. Node outlines
// are coloured by their cached result for view, objects are white. scale is
// pixels per world unit.
func (c *Culler) DumpImage(w io.Writer, view ViewID, scale float64) error {
	if scale <= 0 {
		scale = 1
	}

	root := c.tree.Root().Box
	px := func(v, min float64) int {
		return int(math.Floor((v - min) * scale))
	}

	width := px(root.Max.X(), root.Min.X()) + 1
	height := px(root.Max.Z(), root.Min.Z()) + 1

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	col := noEntryColor

	hLine := func(x1, y, x2 int) {
		for ; x1 <= x2; x1++ {
			frame.Set(x1, y, col)
		}
	}

	vLine := func(x, y1, y2 int) {
		for ; y1 <= y2; y1++ {
			frame.Set(x, y1, col)
		}
	}

	rect := func(b Box) {
		x1, x2 := px(b.Min.X(), root.Min.X()), px(b.Max.X(), root.Min.X())
		y1, y2 := px(b.Min.Z(), root.Min.Z()), px(b.Max.Z(), root.Min.Z())
		hLine(x1, y1, x2)
		hLine(x1, y2, x2)
		vLine(x1, y1, y2)
		vLine(x2, y1, y2)
	}

	if c.tree.Len() > 0 {
		c.tree.Walk(func(n *Node) {
			col = noEntryColor
			if e, ok := n.Vis.Entry(view); ok {
				col = resultColors[e.Result]
			}
			rect(n.Box)
		})

		col = objectColor
		for _, v := range c.order {
			rect(v.box)
		}
	}

	if err := bmp.Encode(w, frame); err != nil {
		return errors.New("encoding debug image failed").Wrap(err)
	}
	return nil
}
