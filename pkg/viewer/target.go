package viewer

import (
	"image"
	"image/draw"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// Target is a host-owned render destination. The engine writes into it only
// between StartSession and End and keeps no reference afterwards.
type Target interface {
	Mounted() bool
}

// Canvas is the render target of a PDF session
type Canvas interface {
	Target
	// Resize sets the surface size in pixels before a page is drawn.
	Resize(width, height int)
	Draw(img image.Image) error
}

// Container is the render target of an EPUB session
type Container interface {
	Target
	// Size returns the viewport in text cells.
	Size() (cols, rows int)
	Show(v View) error
}

// ImageCanvas is an in-memory Canvas backed by an RGBA image
type ImageCanvas struct {
	mu      sync.Mutex
	img     *image.RGBA
	mounted bool
	draws   int
}

// NewImageCanvas returns a mounted, empty canvas
func NewImageCanvas() *ImageCanvas {
	return &ImageCanvas{mounted: true}
}

func (c *ImageCanvas) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Unmount detaches the canvas; later draws fail with ErrTargetUnavailable.
func (c *ImageCanvas) Unmount() {
	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

func (c *ImageCanvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img != nil && c.img.Bounds().Dx() == width && c.img.Bounds().Dy() == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Draw copies img onto the surface
func (c *ImageCanvas) Draw(img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return ErrTargetUnavailable
	}
	if c.img == nil {
		c.img = image.NewRGBA(img.Bounds().Sub(img.Bounds().Min))
	}
	draw.Draw(c.img, c.img.Bounds(), img, img.Bounds().Min, draw.Src)
	c.draws++
	return nil
}

// Image returns a copy of the surface, or nil before the first draw
func (c *ImageCanvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return nil
	}
	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// Draws returns how many pages were drawn
func (c *ImageCanvas) Draws() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draws
}

// TextContainer is an in-memory Container with a fixed cell grid
type TextContainer struct {
	mu      sync.Mutex
	cols    int
	rows    int
	mounted bool
	view    View
	shown   bool
	shows   int
}

// NewTextContainer returns a mounted container of cols × rows cells
func NewTextContainer(cols, rows int) *TextContainer {
	return &TextContainer{cols: cols, rows: rows, mounted: true}
}

func (c *TextContainer) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

func (c *TextContainer) Unmount() {
	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

func (c *TextContainer) Size() (cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols, c.rows
}

// SetSize changes the viewport. The session must be told with Resize.
func (c *TextContainer) SetSize(cols, rows int) {
	c.mu.Lock()
	c.cols, c.rows = cols, rows
	c.mu.Unlock()
}

func (c *TextContainer) Show(v View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return ErrTargetUnavailable
	}
	c.view = v
	c.shown = true
	c.shows++
	return nil
}

// View returns the last view shown
func (c *TextContainer) View() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.shown
}

// Shows returns how many views were shown
func (c *TextContainer) Shows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shows
}

// String renders the visible grid, each line padded to the column width
func (c *TextContainer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	for i := 0; i < c.rows; i++ {
		line := ""
		if i < len(c.view.Lines) {
			line = runewidth.Truncate(c.view.Lines[i], c.cols, "")
		}
		b.WriteString(runewidth.FillRight(line, c.cols))
		b.WriteByte('\n')
	}
	return b.String()
}
