package pdf

import "errors"

// Sentinel errors returned by the pdf package.
var (
	// ErrNotPDF indicates the data does not carry a %PDF- header.
	ErrNotPDF = errors.New("pdf: not a PDF file")

	// ErrNoPages indicates the page tree resolved to zero pages.
	ErrNoPages = errors.New("pdf: document has no pages")

	// ErrEncrypted indicates the document is encrypted and cannot be opened
	// without a password, or uses a security handler that is not supported.
	ErrEncrypted = errors.New("pdf: document is encrypted")

	// ErrPageRange indicates a page number outside 1..NumPages.
	ErrPageRange = errors.New("pdf: page out of range")

	// ErrClosed indicates the document has been closed.
	ErrClosed = errors.New("pdf: document closed")
)
