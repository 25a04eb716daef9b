// Package raster holds the glyph and colour helpers shared by the page and
// section renderers.
package raster

import (
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// FontStyle selects one of the bundled Go fonts
type FontStyle int

const (
	Regular FontStyle = iota
	Bold
	Italic
	BoldItalic
	Mono
)

var (
	fontsOnce sync.Once
	fonts     map[FontStyle]*truetype.Font
)

func loadFonts() {
	sources := map[FontStyle][]byte{
		Regular:    goregular.TTF,
		Bold:       gobold.TTF,
		Italic:     goitalic.TTF,
		BoldItalic: gobolditalic.TTF,
		Mono:       gomono.TTF,
	}
	fonts = make(map[FontStyle]*truetype.Font, len(sources))
	for style, ttf := range sources {
		// The bundled fonts are known-good; a parse failure is a build defect.
		f, err := truetype.Parse(ttf)
		if err != nil {
			panic("raster: parse bundled font: " + err.Error())
		}
		fonts[style] = f
	}
}

// Font returns the parsed font for a style
func Font(style FontStyle) *truetype.Font {
	fontsOnce.Do(loadFonts)
	if f, ok := fonts[style]; ok {
		return f
	}
	return fonts[Regular]
}

// StyleForName picks a substitute style from a PDF BaseFont name such as
// "ABCDEF+Helvetica-BoldOblique".
func StyleForName(name string) FontStyle {
	if i := strings.IndexByte(name, '+'); i >= 0 {
		name = name[i+1:]
	}
	lower := strings.ToLower(name)

	if strings.Contains(lower, "courier") || strings.Contains(lower, "mono") {
		return Mono
	}
	bold := strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
	italic := strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	switch {
	case bold && italic:
		return BoldItalic
	case bold:
		return Bold
	case italic:
		return Italic
	}
	return Regular
}
