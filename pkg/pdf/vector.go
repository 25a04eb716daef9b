package pdf

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// pathOp is a path construction verb
type pathOp uint8

const (
	opMove pathOp = iota
	opLine
	opQuad
	opCubic
	opClose
)

type point struct{ X, Y float64 }

// path is a sequence of subpaths in a single coordinate space
type path struct {
	ops []pathOp
	pts []point
}

func (p *path) moveTo(x, y float64) {
	p.ops = append(p.ops, opMove)
	p.pts = append(p.pts, point{x, y})
}

func (p *path) lineTo(x, y float64) {
	if len(p.ops) == 0 {
		p.moveTo(x, y)
		return
	}
	p.ops = append(p.ops, opLine)
	p.pts = append(p.pts, point{x, y})
}

func (p *path) quadTo(x1, y1, x, y float64) {
	p.ops = append(p.ops, opQuad)
	p.pts = append(p.pts, point{x1, y1}, point{x, y})
}

func (p *path) cubicTo(x1, y1, x2, y2, x, y float64) {
	p.ops = append(p.ops, opCubic)
	p.pts = append(p.pts, point{x1, y1}, point{x2, y2}, point{x, y})
}

func (p *path) close() {
	if len(p.ops) > 0 && p.ops[len(p.ops)-1] != opClose {
		p.ops = append(p.ops, opClose)
	}
}

func (p *path) reset() {
	p.ops = p.ops[:0]
	p.pts = p.pts[:0]
}

func (p *path) empty() bool {
	return len(p.ops) == 0
}

// current returns the last point, used by the v operator
func (p *path) current() (point, bool) {
	if len(p.pts) == 0 {
		return point{}, false
	}
	return p.pts[len(p.pts)-1], true
}

// appendTransformed appends q transformed by m
func (p *path) appendTransformed(q *path, m Matrix) {
	p.ops = append(p.ops, q.ops...)
	for _, pt := range q.pts {
		x, y := m.Apply(pt.X, pt.Y)
		p.pts = append(p.pts, point{x, y})
	}
}

func (p *path) bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, pt := range p.pts {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	return
}

// fillPath fills a device-space path with the nonzero rule
func fillPath(dst *image.RGBA, p *path, c color.NRGBA) {
	if p.empty() || c.A == 0 {
		return
	}
	minX, minY, maxX, maxY := p.bounds()
	if math.IsInf(minX, 0) || math.IsNaN(minX) || math.IsNaN(maxY) {
		return
	}
	rect := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}

	z := vector.NewRasterizer(rect.Dx(), rect.Dy())
	z.DrawOp = draw.Over
	ox, oy := float64(rect.Min.X), float64(rect.Min.Y)
	f := func(pt point) (float32, float32) {
		return float32(pt.X - ox), float32(pt.Y - oy)
	}

	i := 0
	open := false
	for _, op := range p.ops {
		switch op {
		case opMove:
			if open {
				z.ClosePath()
			}
			z.MoveTo(f(p.pts[i]))
			i++
			open = true
		case opLine:
			z.LineTo(f(p.pts[i]))
			i++
		case opQuad:
			x1, y1 := f(p.pts[i])
			x, y := f(p.pts[i+1])
			z.QuadTo(x1, y1, x, y)
			i += 2
		case opCubic:
			x1, y1 := f(p.pts[i])
			x2, y2 := f(p.pts[i+1])
			x, y := f(p.pts[i+2])
			z.CubeTo(x1, y1, x2, y2, x, y)
			i += 3
		case opClose:
			if open {
				z.ClosePath()
				open = false
			}
		}
	}
	if open {
		z.ClosePath()
	}
	z.Draw(dst, rect, image.NewUniform(c), image.Point{})
}

// strokeOutline converts a device-space path into a fillable outline of the
// given width. Segments become quads and vertices get octagonal joins; all
// pieces share one winding direction so the nonzero fill unions them.
func strokeOutline(p *path, width float64) *path {
	out := &path{}
	half := math.Max(width, 1) / 2

	for _, poly := range flatten(p) {
		for k := 0; k+1 < len(poly); k++ {
			addSegmentQuad(out, poly[k], poly[k+1], half)
		}
		for _, v := range poly {
			addJoin(out, v, half)
		}
	}
	return out
}

func addSegmentQuad(out *path, a, b point, half float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*half, dx/length*half
	out.moveTo(a.X+nx, a.Y+ny)
	out.lineTo(b.X+nx, b.Y+ny)
	out.lineTo(b.X-nx, b.Y-ny)
	out.lineTo(a.X-nx, a.Y-ny)
	out.close()
}

func addJoin(out *path, c point, half float64) {
	for k := 0; k < 8; k++ {
		angle := -float64(k) * math.Pi / 4
		x, y := c.X+half*math.Cos(angle), c.Y+half*math.Sin(angle)
		if k == 0 {
			out.moveTo(x, y)
		} else {
			out.lineTo(x, y)
		}
	}
	out.close()
}

// flatten turns a path into polylines; closed subpaths repeat their start
func flatten(p *path) [][]point {
	var polys [][]point
	var cur []point
	i := 0
	flush := func() {
		if len(cur) > 0 {
			polys = append(polys, cur)
		}
		cur = nil
	}
	for _, op := range p.ops {
		switch op {
		case opMove:
			flush()
			cur = []point{p.pts[i]}
			i++
		case opLine:
			cur = append(cur, p.pts[i])
			i++
		case opQuad:
			if len(cur) == 0 {
				cur = []point{p.pts[i]}
			}
			cur = appendQuad(cur, cur[len(cur)-1], p.pts[i], p.pts[i+1])
			i += 2
		case opCubic:
			if len(cur) == 0 {
				cur = []point{p.pts[i]}
			}
			cur = appendCubic(cur, cur[len(cur)-1], p.pts[i], p.pts[i+1], p.pts[i+2])
			i += 3
		case opClose:
			if len(cur) > 1 {
				cur = append(cur, cur[0])
			}
			start := point{}
			if len(cur) > 0 {
				start = cur[0]
			}
			flush()
			cur = []point{start}
		}
	}
	flush()
	return polys
}

func segments(length float64) int {
	n := int(math.Ceil(length / 4))
	if n < 1 {
		return 1
	}
	if n > 64 {
		return 64
	}
	return n
}

func dist(a, b point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func appendQuad(dst []point, p0, p1, p2 point) []point {
	n := segments(dist(p0, p1) + dist(p1, p2))
	for k := 1; k <= n; k++ {
		t := float64(k) / float64(n)
		u := 1 - t
		dst = append(dst, point{
			u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
			u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
		})
	}
	return dst
}

func appendCubic(dst []point, p0, p1, p2, p3 point) []point {
	n := segments(dist(p0, p1) + dist(p1, p2) + dist(p2, p3))
	for k := 1; k <= n; k++ {
		t := float64(k) / float64(n)
		u := 1 - t
		a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
		dst = append(dst, point{
			a*p0.X + b*p1.X + c*p2.X + d*p3.X,
			a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
		})
	}
	return dst
}
