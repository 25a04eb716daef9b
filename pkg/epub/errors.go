package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrInvalidEPub indicates the archive is not a usable EPUB: no package
	// document, an empty manifest, or a spine without readable sections.
	ErrInvalidEPub = errors.New("epub: invalid EPUB file")

	// ErrDRMProtected indicates the content documents are encrypted with
	// something other than font obfuscation.
	ErrDRMProtected = errors.New("epub: file is DRM protected")

	// ErrFileNotFound indicates the requested file does not exist in the archive.
	ErrFileNotFound = errors.New("epub: file not found in archive")

	// ErrSectionRange indicates a section index outside [0, NumSections).
	ErrSectionRange = errors.New("epub: section index out of range")

	// ErrClosed is returned by a Book after Close.
	ErrClosed = errors.New("epub: book is closed")
)
