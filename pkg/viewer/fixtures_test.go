package viewer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/novvoo/go-docview/internal/logging"
)

func quietLogger() *slog.Logger {
	return logging.New(logging.LevelError, logging.FormatText, io.Discard)
}

// multiPagePDF generates an n-page A4 document with one line of text per page
func multiPagePDF(t *testing.T, n int) []byte {
	t.Helper()
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetTitle("Generated Pages", true)
	doc.SetAuthor("Docview Tests", true)
	for i := 1; i <= n; i++ {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 24)
		doc.Cell(200, 40, fmt.Sprintf("Page %d", i))
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("gofpdf output: %v", err)
	}
	return buf.Bytes()
}

// testEPUB builds a book with one section per body, each body being the
// inner XHTML of <body>.
func testEPUB(t *testing.T, bodies ...string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	write := func(name, content string) {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OPS/book.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for i, body := range bodies {
		name := fmt.Sprintf("s%d.xhtml", i+1)
		fmt.Fprintf(&manifest, `<item id="s%d" href="%s" media-type="application/xhtml+xml"/>`, i+1, name)
		fmt.Fprintf(&spine, `<itemref idref="s%d"/>`, i+1)
		write("OPS/"+name, `<html xmlns="http://www.w3.org/1999/xhtml"><body>`+body+`</body></html>`)
	}
	write("OPS/book.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">urn:uuid:test</dc:identifier>
    <dc:title>Flowing Book</dc:title>
    <dc:creator>E. Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>`+manifest.String()+`</manifest>
  <spine>`+spine.String()+`</spine>
</package>`)

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// threeSectionEPUB has a short first section, a long second section and a
// one-line third section.
func threeSectionEPUB(t *testing.T) []byte {
	t.Helper()
	var long strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&long, "<p>Paragraph %d has enough words to wrap across more than one line of text.</p>", i)
	}
	return testEPUB(t,
		"<h1>One</h1><p>The first section is short.</p>",
		"<h1>Two</h1>"+long.String(),
		"<p>The end.</p>",
	)
}

// countingOpener counts how often a source is parsed
type countingOpener struct {
	inner Opener
	opens atomic.Int32
}

func (o *countingOpener) Open(src Source) (Handle, error) {
	o.opens.Add(1)
	return o.inner.Open(src)
}

// gatedPages is a PageHandle whose pages finish rendering only once their
// gate is released. The rendered image is base+index pixels wide.
type gatedPages struct {
	total    int
	base     int
	mu       sync.Mutex
	gates    map[int]chan struct{}
	disposed atomic.Bool
}

func newGatedPages(total int) *gatedPages {
	return &gatedPages{total: total, gates: make(map[int]chan struct{})}
}

func (g *gatedPages) gate(index int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[index]
	if !ok {
		ch = make(chan struct{})
		g.gates[index] = ch
	}
	return ch
}

func (g *gatedPages) release(index int) { close(g.gate(index)) }

func (g *gatedPages) Format() Format     { return FormatPDF }
func (g *gatedPages) PageCount() int     { return g.total }
func (g *gatedPages) Metadata() Metadata { return Metadata{Title: "gated"} }
func (g *gatedPages) Dispose() error     { g.disposed.Store(true); return nil }
func (g *gatedPages) Disposed() bool     { return g.disposed.Load() }

func (g *gatedPages) Rasterize(ctx context.Context, index int, scale float64) (*image.RGBA, error) {
	select {
	case <-g.gate(index):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return image.NewRGBA(image.Rect(0, 0, g.base+index, 1)), nil
}

func gatedOpener(h Handle) Opener {
	return OpenerFunc(func(Source) (Handle, error) { return h, nil })
}

// sourceOpener hands out a prepared handle per source payload
func sourceOpener(handles map[string]Handle) Opener {
	return OpenerFunc(func(src Source) (Handle, error) {
		h, ok := handles[string(src.Data)]
		if !ok {
			return nil, &ParseError{Kind: Unsupported}
		}
		return h, nil
	})
}

// waitLoading blocks until a start on target is in flight
func waitLoading(t *testing.T, m *Manager, target Target) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if status, _ := m.Status(target); status == StatusLoading {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("start never reached the loading state")
		}
		time.Sleep(time.Millisecond)
	}
}

// toggleContainer is a TextContainer that can be taken offline and back
type toggleContainer struct {
	*TextContainer
	down atomic.Bool
}

func (c *toggleContainer) Mounted() bool {
	return !c.down.Load() && c.TextContainer.Mounted()
}

func (c *toggleContainer) Show(v View) error {
	if c.down.Load() {
		return ErrTargetUnavailable
	}
	return c.TextContainer.Show(v)
}

// recordingCanvas remembers the width of every image drawn on it
type recordingCanvas struct {
	mu      sync.Mutex
	drawn   []int
	unmount bool
}

func (c *recordingCanvas) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unmount
}

func (c *recordingCanvas) Resize(width, height int) {}

func (c *recordingCanvas) Draw(img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawn = append(c.drawn, img.Bounds().Dx())
	return nil
}

func (c *recordingCanvas) pages() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.drawn...)
}

// openTestEPUBHandle opens an EPUB fixture directly
func openTestEPUBHandle(t *testing.T, data []byte) *EPUBHandle {
	t.Helper()
	h, err := OpenEPUB(data)
	if err != nil {
		t.Fatalf("OpenEPUB: %v", err)
	}
	t.Cleanup(func() { h.Dispose() })
	return h
}
