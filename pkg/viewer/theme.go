package viewer

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/novvoo/go-docview/internal/raster"
)

// Theme maps CSS-like selectors to property/value pairs, for example
// Theme{"body": {"color": "#000", "background": "#fff"}}.
type Theme map[string]map[string]string

// Built-in theme names
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeSepia = "sepia"
)

// BuiltinThemes returns the themes every rendition starts with
func BuiltinThemes() map[string]Theme {
	return map[string]Theme{
		ThemeLight: {"body": {"color": "#1a1a1a", "background": "#ffffff"}},
		ThemeDark:  {"body": {"color": "#e0e0e0", "background": "#121212"}},
		ThemeSepia: {"body": {"color": "#5b4636", "background": "#f4ecd8"}},
	}
}

func (t Theme) clone() Theme {
	out := make(Theme, len(t))
	for sel, props := range t {
		p := make(map[string]string, len(props))
		for k, v := range props {
			p[k] = v
		}
		out[sel] = p
	}
	return out
}

// Style is the resolved presentation of a view
type Style struct {
	Color      string
	Background string
	FontFamily string
}

// Style resolves the body rule of the theme
func (t Theme) Style() Style {
	body := t["body"]
	s := Style{
		Color:      body["color"],
		Background: body["background"],
		FontFamily: body["font-family"],
	}
	if s.Background == "" {
		s.Background = body["background-color"]
	}
	return s
}

// View is one displayed page of an EPUB section
type View struct {
	Section int // 1-based spine section
	Page    int // 1-based page within the section
	Pages   int // pages in the section at the current viewport
	Title   string
	Lines   []string
	Theme   string
	Style   Style
}

// Image draws the view onto a width × height image in the view's colours
func (v View) Image(width, height int) (*image.RGBA, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("view image: invalid size %dx%d", width, height)
	}
	bg, ok := raster.ParseColor(v.Style.Background)
	if !ok {
		bg = color.RGBA{255, 255, 255, 255}
	}
	fg, ok := raster.ParseColor(v.Style.Color)
	if !ok {
		fg = color.RGBA{0, 0, 0, 255}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	raster.Fill(img, bg)

	opts := raster.DefaultTextOptions()
	opts.Foreground = fg
	if strings.Contains(strings.ToLower(v.Style.FontFamily), "mono") {
		opts.Style = raster.Mono
	}
	if err := raster.DrawLines(img, v.Lines, opts); err != nil {
		return nil, err
	}
	return img, nil
}
