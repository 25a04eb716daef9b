package viewer

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Format is the document format of a Source
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatEPUB
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatEPUB:
		return "epub"
	}
	return "unknown"
}

// Source is a raw document buffer supplied by the host, with an optional
// declared content type. Data must not be modified after it is handed over.
type Source struct {
	Data        []byte
	ContentType string
}

// Identity returns a BLAKE2b-256 fingerprint of the buffer. Two sources with
// the same identity describe the same document.
func (s Source) Identity() string {
	sum := blake2b.Sum256(s.Data)
	return hex.EncodeToString(sum[:])
}

const (
	pdfSignatureWindow = 1024
	epubMimetype       = "application/epub+zip"
)

var contentTypes = map[string]Format{
	"application/pdf":      FormatPDF,
	"application/x-pdf":    FormatPDF,
	"application/epub+zip": FormatEPUB,
	"application/epub":     FormatEPUB,
}

// Detect classifies a source. The content type hint is used first; a
// signature in the data that positively identifies the other format wins
// over the hint. Ambiguous hints such as application/octet-stream fall
// through to signature inspection. Detect never fails.
func Detect(src Source) Format {
	signature := sniff(src.Data)
	hint := hintFormat(src.ContentType)

	if hint != FormatUnknown {
		if signature != FormatUnknown && signature != hint {
			return signature
		}
		return hint
	}
	return signature
}

func hintFormat(contentType string) Format {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return contentTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// sniff inspects the signature. A zip is never a PDF, even when a stored
// entry carries %PDF- near the start.
func sniff(data []byte) Format {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		if isEPUBArchive(data) {
			return FormatEPUB
		}
		return FormatUnknown
	}
	head := data
	if len(head) > pdfSignatureWindow {
		head = head[:pdfSignatureWindow]
	}
	if bytes.Contains(head, []byte("%PDF-")) {
		return FormatPDF
	}
	return FormatUnknown
}

// isEPUBArchive accepts a zip whose first entry is the EPUB mimetype file,
// or failing that one that carries META-INF/container.xml.
func isEPUBArchive(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || len(zr.File) == 0 {
		return false
	}

	if first := zr.File[0]; first.Name == "mimetype" {
		if rc, err := first.Open(); err == nil {
			b, _ := io.ReadAll(io.LimitReader(rc, 64))
			rc.Close()
			if strings.TrimSpace(string(b)) == epubMimetype {
				return true
			}
		}
	}
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, "META-INF/container.xml") {
			return true
		}
	}
	return false
}
