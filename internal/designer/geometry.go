package designer

import (
	"math"

	"github.com/rendis/jobflow/pkg/schema"
)

// Margin is the gap kept between a child's box and its parent's border.
const Margin = 20

const epsilon = 1e-9

// Rect is an axis-aligned bounding box.
type Rect struct {
	X, Y, W, H float64
}

// RectOf builds a Rect from a position and a size.
func RectOf(p schema.Point, s schema.Size) Rect {
	return Rect{X: p.X, Y: p.Y, W: s.Width, H: s.Height}
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Position returns the top-left corner.
func (r Rect) Position() schema.Point { return schema.Point{X: r.X, Y: r.Y} }

// Size returns the width and height.
func (r Rect) Size() schema.Size { return schema.Size{Width: r.W, Height: r.H} }

// Inflate grows the box by m on every side.
func (r Rect) Inflate(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, W: r.W + 2*m, H: r.H + 2*m}
}

// Union returns the smallest box enclosing both.
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X: x,
		Y: y,
		W: math.Max(r.Right(), o.Right()) - x,
		H: math.Max(r.Bottom(), o.Bottom()) - y,
	}
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X-epsilon && o.Y >= r.Y-epsilon &&
		o.Right() <= r.Right()+epsilon && o.Bottom() <= r.Bottom()+epsilon
}

// Intersects reports whether the boxes overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Translate moves the box by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Equal compares boxes with a small tolerance.
func (r Rect) Equal(o Rect) bool {
	return math.Abs(r.X-o.X) < epsilon && math.Abs(r.Y-o.Y) < epsilon &&
		math.Abs(r.W-o.W) < epsilon && math.Abs(r.H-o.H) < epsilon
}
