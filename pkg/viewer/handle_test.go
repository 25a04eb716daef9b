package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/novvoo/go-docview/internal/cache"
	"github.com/novvoo/go-docview/pkg/epub"
	"github.com/novvoo/go-docview/pkg/pdf"
)

func TestOpenPDF(t *testing.T) {
	h, err := Open(Source{Data: multiPagePDF(t, 10)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Dispose()

	if h.Format() != FormatPDF {
		t.Errorf("Format() = %v", h.Format())
	}
	if h.PageCount() != 10 {
		t.Errorf("PageCount() = %d, want 10", h.PageCount())
	}
	md := h.Metadata()
	if md.Title != "Generated Pages" || len(md.Authors) != 1 || md.Authors[0] != "Docview Tests" {
		t.Errorf("unexpected metadata %+v", md)
	}
	if _, ok := h.(PageHandle); !ok {
		t.Error("PDF handle should be a PageHandle")
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      Source
		kind     ParseErrorKind
		sentinel error
		cause    error
	}{
		{"empty", Source{}, EmptyBuffer, ErrEmptyBuffer, nil},
		{"unknown", Source{Data: []byte("plain text")}, Unsupported, ErrUnsupported, nil},
		{"corrupt pdf", Source{Data: []byte("%PDF-1.7\n\x00\x01 not really a pdf\n%%EOF")}, Malformed, ErrMalformed, nil},
		{"pdf hint on text", Source{Data: []byte("hello"), ContentType: "application/pdf"}, Malformed, ErrMalformed, pdf.ErrNotPDF},
		{"epub without spine", Source{Data: testEPUB(t)}, Malformed, ErrMalformed, epub.ErrInvalidEPub},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Open(tt.src)
			if h != nil {
				t.Error("no handle may be returned on failure")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", pe.Kind, tt.kind)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.cause)
			}
		})
	}
}

func TestOpenEPUB(t *testing.T) {
	h, err := Open(Source{Data: threeSectionEPUB(t), ContentType: "application/epub+zip"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Dispose()

	flow, ok := h.(FlowHandle)
	if !ok {
		t.Fatal("EPUB handle should be a FlowHandle")
	}
	if h.PageCount() != 3 {
		t.Errorf("PageCount() = %d, want 3", h.PageCount())
	}
	md := h.Metadata()
	if md.Title != "Flowing Book" || md.Language != "en" || md.Identifier != "urn:uuid:test" {
		t.Errorf("unexpected metadata %+v", md)
	}

	c, err := flow.Section(3)
	if err != nil || c.Text != "The end." {
		t.Errorf("Section(3) = %q, %v", c.Text, err)
	}
	if _, err := flow.Section(4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Section(4) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestHandleDispose(t *testing.T) {
	p, err := OpenPDF(multiPagePDF(t, 2), cache.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	if err := p.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := p.Dispose(); err != nil {
		t.Errorf("second Dispose: %v", err)
	}
	if !p.Disposed() {
		t.Error("Disposed() = false after Dispose")
	}
	if _, err := p.Rasterize(context.Background(), 1, 1); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Rasterize after Dispose = %v", err)
	}

	e := openTestEPUBHandle(t, threeSectionEPUB(t))
	e.Dispose()
	if _, err := e.Section(1); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Section after Dispose = %v", err)
	}
}

func TestRasterizeCache(t *testing.T) {
	h, err := OpenPDF(multiPagePDF(t, 3), cache.Config{MaxSize: 2})
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	defer h.Dispose()
	ctx := context.Background()

	img, err := h.Rasterize(ctx, 1, 0.5)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	// A4 at half scale
	if b := img.Bounds(); b.Dx() != 298 || b.Dy() != 421 {
		t.Errorf("page size = %dx%d, want 298x421", b.Dx(), b.Dy())
	}
	again, _ := h.Rasterize(ctx, 1, 0.5)
	if again != img {
		t.Error("second Rasterize should come from the cache")
	}
	if s := h.CacheStats(); s.Hits != 1 || s.Size != 1 {
		t.Errorf("cache stats %+v", s)
	}

	h.Rasterize(ctx, 2, 0.5)
	h.Rasterize(ctx, 3, 0.5)
	if s := h.CacheStats(); s.Size != 2 || s.Evictions != 1 {
		t.Errorf("cache stats after eviction %+v", s)
	}

	for _, index := range []int{0, 4} {
		_, err := h.Rasterize(ctx, index, 1)
		var re *RenderError
		if !errors.As(err, &re) || re.Kind != IndexOutOfRange {
			t.Errorf("Rasterize(%d) error = %v, want IndexOutOfRange", index, err)
		}
	}
}
