package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/novvoo/go-docview/internal/cache"
	"github.com/novvoo/go-docview/pkg/epub"
	"github.com/novvoo/go-docview/pkg/pdf"
)

// Metadata is the best-effort document metadata shown by hosts
type Metadata struct {
	Title      string
	Authors    []string
	Subject    string
	Language   string
	Identifier string
	Publisher  string
	Creator    string
	Producer   string
	Created    time.Time
}

// Handle is an opened document. It is owned by exactly one session and
// released with Dispose. The two arms are PageHandle (PDF) and FlowHandle
// (EPUB).
type Handle interface {
	Format() Format
	// PageCount is the number of pages (PDF) or spine sections (EPUB).
	PageCount() int
	Metadata() Metadata
	Dispose() error
	Disposed() bool
}

// PageHandle is a document with fixed pages rasterized to images
type PageHandle interface {
	Handle
	Rasterize(ctx context.Context, index int, scale float64) (*image.RGBA, error)
}

// FlowHandle is a document whose sections are reflowed into a viewport
type FlowHandle interface {
	Handle
	Section(index int) (epub.Content, error)
}

// Opener turns a source into a handle
type Opener interface {
	Open(src Source) (Handle, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(src Source) (Handle, error)

// Open calls f(src)
func (f OpenerFunc) Open(src Source) (Handle, error) {
	return f(src)
}

// DocumentOpener detects the format of a source and opens it with the
// matching parser.
type DocumentOpener struct {
	// PageCache bounds the rasterized pages kept per PDF handle.
	PageCache cache.Config
}

// Open detects and opens src with a default page cache
func Open(src Source) (Handle, error) {
	return DocumentOpener{PageCache: cache.DefaultConfig()}.Open(src)
}

// Open detects the format once and opens the source. No handle is returned
// or retained on failure.
func (o DocumentOpener) Open(src Source) (Handle, error) {
	if len(src.Data) == 0 {
		return nil, &ParseError{Kind: EmptyBuffer}
	}

	switch format := Detect(src); format {
	case FormatPDF:
		return OpenPDF(src.Data, o.PageCache)
	case FormatEPUB:
		return OpenEPUB(src.Data)
	default:
		return nil, &ParseError{Kind: Unsupported, Format: format}
	}
}

type pageKey struct {
	index int
	scale float64
}

// PDFHandle is the PDF arm of Handle
type PDFHandle struct {
	doc      *pdf.Document
	renderer *pdf.PageRenderer
	pages    *cache.LRU[pageKey, *image.RGBA]
	disposed atomic.Bool

	once sync.Once
	meta Metadata
}

// OpenPDF parses a PDF buffer. Encrypted documents that need a password
// are Unsupported; every other failure is Malformed.
func OpenPDF(data []byte, pageCache cache.Config) (*PDFHandle, error) {
	if len(data) == 0 {
		return nil, &ParseError{Kind: EmptyBuffer, Format: FormatPDF}
	}
	doc, err := pdf.NewDocument(data)
	if err != nil {
		kind := Malformed
		if errors.Is(err, pdf.ErrEncrypted) {
			kind = Unsupported
		}
		return nil, &ParseError{Kind: kind, Format: FormatPDF, Err: err}
	}

	pages := cache.New[pageKey, *image.RGBA](pageCache)
	pages.Cost = func(img *image.RGBA) int64 { return int64(len(img.Pix)) }
	return &PDFHandle{
		doc:      doc,
		renderer: pdf.NewPageRenderer(doc),
		pages:    pages,
	}, nil
}

func (h *PDFHandle) Format() Format { return FormatPDF }

func (h *PDFHandle) PageCount() int { return h.doc.NumPages() }

// Document returns the parsed document
func (h *PDFHandle) Document() *pdf.Document { return h.doc }

// Metadata returns the document information dictionary
func (h *PDFHandle) Metadata() Metadata {
	h.once.Do(func() {
		info := h.doc.GetInfo()
		h.meta = Metadata{
			Title:    info.Title,
			Subject:  info.Subject,
			Creator:  info.Creator,
			Producer: info.Producer,
			Created:  info.CreationDate,
		}
		if info.Author != "" {
			h.meta.Authors = []string{info.Author}
		}
	})
	m := h.meta
	m.Authors = append([]string(nil), h.meta.Authors...)
	return m
}

// Rasterize renders page index (1-based) at scale. Results are cached by
// (index, scale); callers must not modify the returned image.
func (h *PDFHandle) Rasterize(ctx context.Context, index int, scale float64) (*image.RGBA, error) {
	if h.disposed.Load() {
		return nil, ErrSessionEnded
	}
	if index < 1 || index > h.doc.NumPages() {
		return nil, &RenderError{Kind: IndexOutOfRange, Index: index}
	}

	key := pageKey{index: index, scale: scale}
	if img, ok := h.pages.Get(key); ok {
		return img, nil
	}
	img, err := h.renderer.RenderPage(ctx, index, scale)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", index, err)
	}
	h.pages.Put(key, img)
	return img, nil
}

// CacheStats reports page cache usage
func (h *PDFHandle) CacheStats() cache.Stats {
	return h.pages.Stats()
}

// Dispose closes the document and drops cached pages. It is idempotent.
func (h *PDFHandle) Dispose() error {
	if h.disposed.Swap(true) {
		return nil
	}
	h.pages.Clear()
	return h.doc.Close()
}

func (h *PDFHandle) Disposed() bool { return h.disposed.Load() }

// EPUBHandle is the EPUB arm of Handle
type EPUBHandle struct {
	book     *epub.Book
	disposed atomic.Bool
}

// OpenEPUB parses an EPUB buffer. DRM-protected books are Unsupported;
// every other failure is Malformed.
func OpenEPUB(data []byte) (*EPUBHandle, error) {
	if len(data) == 0 {
		return nil, &ParseError{Kind: EmptyBuffer, Format: FormatEPUB}
	}
	book, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		kind := Malformed
		if errors.Is(err, epub.ErrDRMProtected) {
			kind = Unsupported
		}
		return nil, &ParseError{Kind: kind, Format: FormatEPUB, Err: err}
	}
	return &EPUBHandle{book: book}, nil
}

func (h *EPUBHandle) Format() Format { return FormatEPUB }

// PageCount returns the number of readable spine sections
func (h *EPUBHandle) PageCount() int { return h.book.NumSections() }

// Book returns the parsed book
func (h *EPUBHandle) Book() *epub.Book { return h.book }

func (h *EPUBHandle) Metadata() Metadata {
	md := h.book.Metadata()
	return Metadata{
		Title:      md.Title,
		Authors:    md.Creators,
		Language:   md.Language,
		Identifier: md.Identifier,
		Publisher:  md.Publisher,
	}
}

// Section returns the text of section index (1-based)
func (h *EPUBHandle) Section(index int) (epub.Content, error) {
	if h.disposed.Load() {
		return epub.Content{}, ErrSessionEnded
	}
	c, err := h.book.SectionContent(index - 1)
	if errors.Is(err, epub.ErrSectionRange) {
		return epub.Content{}, &RenderError{Kind: IndexOutOfRange, Index: index, Err: err}
	}
	return c, err
}

// Dispose closes the book. It is idempotent.
func (h *EPUBHandle) Dispose() error {
	if h.disposed.Swap(true) {
		return nil
	}
	return h.book.Close()
}

func (h *EPUBHandle) Disposed() bool { return h.disposed.Load() }
