// Package epub opens EPUB 2 and 3 archives far enough to paginate them: it
// locates the package document, validates the manifest and spine, rejects
// DRM-protected content and extracts the text of each spine section.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"sync"
)

const expectedMimetype = "application/epub+zip"

// Metadata is the Dublin Core subset read from the package document.
type Metadata struct {
	Version    string
	Title      string
	Creators   []string
	Language   string
	Identifier string
	Publisher  string
	Date       string
}

// Book is an opened EPUB archive. Section text is extracted lazily and
// cached; a Book is safe for concurrent use.
type Book struct {
	zip      *zip.Reader
	zipExact map[string]*zip.File
	zipLower map[string]*zip.File
	closer   io.Closer
	opfPath  string
	sections []Section
	metadata Metadata
	warnings []string

	mu       sync.Mutex
	contents map[int]Content
	closed   bool
}

// Open opens the EPUB file at path. The caller must Close the book.
func Open(path string) (*Book, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %v: %w", path, err, ErrInvalidEPub)
	}
	b, err := initBook(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader opens an EPUB from r. The caller keeps ownership of r.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %v: %w", err, ErrInvalidEPub)
	}
	return initBook(zr, nil)
}

func initBook(zr *zip.Reader, closer io.Closer) (*Book, error) {
	b := &Book{
		zip:      zr,
		closer:   closer,
		contents: make(map[int]Content),
	}
	b.buildZipIndex()
	b.validateMimetype()

	if err := b.checkDRM(); err != nil {
		return nil, err
	}
	opfPath, err := b.locatePackage()
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath
	if err := b.parsePackage(opfPath); err != nil {
		return nil, err
	}
	return b, nil
}

// validateMimetype records a warning when the first entry is not the
// expected mimetype file; such archives are still opened.
func (b *Book) validateMimetype() {
	if len(b.zip.File) == 0 {
		b.warn("empty archive; mimetype entry missing")
		return
	}
	first := b.zip.File[0]
	if first.Name != "mimetype" {
		b.warn(`first archive entry is not "mimetype"`)
		return
	}
	data, err := readZipFile(first)
	if err != nil {
		b.warn(fmt.Sprintf("cannot read mimetype entry: %v", err))
		return
	}
	if string(data) != expectedMimetype {
		b.warn(fmt.Sprintf("unexpected mimetype: %q", string(data)))
	}
}

func (b *Book) warn(msg string) {
	b.warnings = append(b.warnings, msg)
}

// Close releases the archive. It is idempotent.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.contents = nil
	if b.closer != nil {
		err := b.closer.Close()
		b.closer = nil
		return err
	}
	return nil
}

// Metadata returns a copy of the package metadata.
func (b *Book) Metadata() Metadata {
	m := b.metadata
	m.Creators = append([]string(nil), b.metadata.Creators...)
	return m
}

// Warnings returns the non-fatal problems found while opening.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// PackagePath returns the archive path of the OPF document.
func (b *Book) PackagePath() string {
	return b.opfPath
}

// NumSections returns the number of readable spine sections.
func (b *Book) NumSections() int {
	return len(b.sections)
}

// Sections returns the readable spine sections in reading order.
func (b *Book) Sections() []Section {
	return append([]Section(nil), b.sections...)
}

// SectionContent returns the extracted text of section i (0-based).
func (b *Book) SectionContent(i int) (Content, error) {
	if i < 0 || i >= len(b.sections) {
		return Content{}, fmt.Errorf("%w: %d of %d", ErrSectionRange, i, len(b.sections))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Content{}, ErrClosed
	}
	if c, ok := b.contents[i]; ok {
		return c, nil
	}

	data, err := b.readFile(b.sections[i].Href)
	if err != nil {
		return Content{}, err
	}
	c, err := extractContent(data)
	if err != nil {
		return Content{}, fmt.Errorf("epub: section %s: %w", b.sections[i].Href, err)
	}
	b.contents[i] = c
	return c, nil
}

// ReadFile reads an archive entry by path.
func (b *Book) ReadFile(name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.readFile(name)
}

func (b *Book) readFile(name string) ([]byte, error) {
	f := b.findFile(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return readZipFile(f)
}
