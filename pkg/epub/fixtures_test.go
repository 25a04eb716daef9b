package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const testContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// buildTestEPub writes files into an in-memory zip. The mimetype entry, when
// present, is written first and the rest in name order.
func buildTestEPub(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("buildTestEPub: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			t.Fatalf("buildTestEPub: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestEPub: close writer: %v", err)
	}
	return buf.Bytes()
}

// openTestEPub builds an archive and opens it with NewReader.
func openTestEPub(t *testing.T, files map[string]string) (*Book, error) {
	t.Helper()
	data := buildTestEPub(t, files)
	return NewReader(bytes.NewReader(data), int64(len(data)))
}

// testOPF returns a package document with the given manifest and spine bodies.
func testOPF(manifest, spine string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="isbn">978-0000000000</dc:identifier>
    <dc:identifier id="bookid">urn:uuid:1234</dc:identifier>
    <dc:title>  Test   Book </dc:title>
    <dc:creator>Ada Author</dc:creator>
    <dc:creator>Bo Writer</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>` + manifest + `</manifest>
  <spine>` + spine + `</spine>
</package>`
}

func chapterXHTML(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>` + title + `</title></head>
<body>` + body + `</body></html>`
}

// validEPubFiles returns a three-section book.
func validEPubFiles() map[string]string {
	var manifest, spine strings.Builder
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainer,
	}
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&manifest, `<item id="ch%d" href="text/ch%d.xhtml" media-type="application/xhtml+xml"/>`, i, i)
		fmt.Fprintf(&spine, `<itemref idref="ch%d"/>`, i)
		files[fmt.Sprintf("OEBPS/text/ch%d.xhtml", i)] = chapterXHTML(
			fmt.Sprintf("Chapter %d", i),
			fmt.Sprintf("<h1>Chapter %d</h1><p>First paragraph of chapter %d.</p><p>Second paragraph.</p>", i, i),
		)
	}
	manifest.WriteString(`<item id="css" href="style.css" media-type="text/css"/>`)
	files["OEBPS/style.css"] = "body { margin: 0 }"
	files["OEBPS/content.opf"] = testOPF(manifest.String(), spine.String())
	return files
}

// writeTestEPubFile writes an archive to a temporary file for Open.
func writeTestEPubFile(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(p, buildTestEPub(t, files), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
