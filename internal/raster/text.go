package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/golang/freetype"
)

// TextOptions controls DrawLines
type TextOptions struct {
	Style      FontStyle
	Size       float64 // points
	DPI        float64
	LineHeight float64 // multiple of Size
	Margin     int
	Foreground color.Color
}

// DefaultTextOptions returns the options used for section previews
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Style:      Regular,
		Size:       12,
		DPI:        96,
		LineHeight: 1.4,
		Margin:     16,
		Foreground: color.Black,
	}
}

// LineAdvance returns the vertical distance between baselines in pixels
func (o TextOptions) LineAdvance() int {
	return int(o.Size*o.LineHeight*o.DPI/72 + 0.5)
}

// Fill paints the whole image with c
func Fill(dst draw.Image, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawLines draws one line of text per entry, top to bottom, clipped to dst
func DrawLines(dst draw.Image, lines []string, opts TextOptions) error {
	if opts.Size <= 0 {
		opts.Size = 12
	}
	if opts.DPI <= 0 {
		opts.DPI = 72
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = 1.2
	}
	if opts.Foreground == nil {
		opts.Foreground = color.Black
	}

	c := freetype.NewContext()
	c.SetDPI(opts.DPI)
	c.SetFont(Font(opts.Style))
	c.SetFontSize(opts.Size)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.NewUniform(opts.Foreground))

	advance := opts.LineAdvance()
	x := dst.Bounds().Min.X + opts.Margin
	y := dst.Bounds().Min.Y + opts.Margin + int(opts.Size*opts.DPI/72)
	for _, line := range lines {
		if y > dst.Bounds().Max.Y {
			break
		}
		if _, err := c.DrawString(line, freetype.Pt(x, y)); err != nil {
			return fmt.Errorf("raster: draw line: %w", err)
		}
		y += advance
	}
	return nil
}

var namedColors = map[string]color.RGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
}

// ParseColor parses "#rgb", "#rrggbb" and a few CSS colour names
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, false
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
