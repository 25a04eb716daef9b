package pdf

import (
	"image/color"
	"math"
)

// Matrix is a PDF transformation matrix [a b c d e f], mapping
// x' = a*x + c*y + e and y' = b*x + d*y + f.
type Matrix [6]float64

// Identity is the identity matrix
var Identity = Matrix{1, 0, 0, 1, 0, 0}

// Multiply returns m × n: the transform that applies m first, then n
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms a point
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Scale is the geometric mean scale factor of the linear part
func (m Matrix) Scale() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func matrixFrom(v []float64) (Matrix, bool) {
	if len(v) != 6 {
		return Matrix{}, false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

// TextState holds the text parameters that survive q/Q
type TextState struct {
	Font       *pdfFont
	FontSize   float64
	CharSpace  float64
	WordSpace  float64
	Scale      float64 // horizontal scaling, percent
	Leading    float64
	Rise       float64
	RenderMode int
}

// GraphicsState is the part of the PDF graphics state the rasterizer honours
type GraphicsState struct {
	CTM         Matrix
	Fill        color.RGBA
	Stroke      color.RGBA
	FillAlpha   float64
	StrokeAlpha float64
	LineWidth   float64
	FillSpace   colorSpace
	StrokeSpace colorSpace
	Text        TextState
}

func newGraphicsState(ctm Matrix) GraphicsState {
	black := color.RGBA{A: 255}
	return GraphicsState{
		CTM:         ctm,
		Fill:        black,
		Stroke:      black,
		FillAlpha:   1,
		StrokeAlpha: 1,
		LineWidth:   1,
		FillSpace:   colorSpace{family: "DeviceGray", components: 1},
		StrokeSpace: colorSpace{family: "DeviceGray", components: 1},
		Text:        TextState{FontSize: 12, Scale: 100},
	}
}

// colorSpace is a resolved colour space family and its component count
type colorSpace struct {
	family     Name
	components int
	indexed    *indexedSpace
}

// indexedSpace is an /Indexed colour space lookup table
type indexedSpace struct {
	base   colorSpace
	hival  int
	lookup []byte
}

// toRGBA converts colour components in the given space to RGBA
func (cs colorSpace) toRGBA(v []float64) color.RGBA {
	if cs.indexed != nil && len(v) >= 1 {
		return cs.indexed.color(int(v[0]))
	}
	switch len(v) {
	case 1:
		if cs.family == "Separation" || cs.family == "DeviceN" {
			// Tint 1 is full ink; render as grey ink.
			g := clampByte(1 - v[0])
			return color.RGBA{g, g, g, 255}
		}
		g := clampByte(v[0])
		return color.RGBA{g, g, g, 255}
	case 3:
		return color.RGBA{clampByte(v[0]), clampByte(v[1]), clampByte(v[2]), 255}
	case 4:
		return cmykToRGBA(v[0], v[1], v[2], v[3])
	}
	return color.RGBA{A: 255}
}

func (ix *indexedSpace) color(i int) color.RGBA {
	if i < 0 {
		i = 0
	}
	if i > ix.hival {
		i = ix.hival
	}
	n := ix.base.components
	off := i * n
	if n == 0 || off+n > len(ix.lookup) {
		return color.RGBA{A: 255}
	}
	v := make([]float64, n)
	for k := 0; k < n; k++ {
		v[k] = float64(ix.lookup[off+k]) / 255
	}
	return ix.base.toRGBA(v)
}

func cmykToRGBA(c, m, y, k float64) color.RGBA {
	return color.RGBA{
		clampByte((1 - c) * (1 - k)),
		clampByte((1 - m) * (1 - k)),
		clampByte((1 - y) * (1 - k)),
		255,
	}
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// withAlpha returns c as a non-premultiplied colour with alpha applied
func withAlpha(c color.RGBA, alpha float64) color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, clampByte(alpha)}
}
