package viewer

import (
	"archive/zip"
	"bytes"
	"testing"
)

func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if name == "mimetype" {
			fw.Write([]byte("application/epub+zip"))
		} else {
			fw.Write([]byte("<x/>"))
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// storedZip writes uncompressed entries so their bytes appear verbatim
func storedZip(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e[0], Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(e[1]))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	pdfData := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	epubData := zipWith(t, "mimetype", "META-INF/container.xml")
	containerOnly := zipWith(t, "META-INF/container.xml", "OPS/book.opf")
	plainZip := zipWith(t, "readme.txt")
	lateHeader := append(bytes.Repeat([]byte{' '}, 100), pdfData...)
	tooLate := append(bytes.Repeat([]byte{' '}, 2000), pdfData...)
	epubWithPDFText := storedZip(t,
		[2]string{"mimetype", "application/epub+zip"},
		[2]string{"OPS/notes.txt", "%PDF-1.4 appears in this chapter"},
		[2]string{"META-INF/container.xml", "<container/>"},
	)
	zipWithPDFText := storedZip(t, [2]string{"doc.pdf", "%PDF-1.4\n"})

	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        Format
	}{
		{"pdf signature", pdfData, "", FormatPDF},
		{"pdf after junk", lateHeader, "", FormatPDF},
		{"pdf signature too late", tooLate, "", FormatUnknown},
		{"epub signature", epubData, "", FormatEPUB},
		{"epub by container", containerOnly, "", FormatEPUB},
		{"plain zip", plainZip, "", FormatUnknown},
		{"text", []byte("hello"), "", FormatUnknown},
		{"empty", nil, "", FormatUnknown},
		{"pdf hint", []byte("hello"), "application/pdf", FormatPDF},
		{"pdf hint with params", []byte("hello"), "Application/PDF; charset=binary", FormatPDF},
		{"x-pdf hint", nil, "application/x-pdf", FormatPDF},
		{"epub hint", []byte("hello"), "application/epub+zip", FormatEPUB},
		{"octet stream falls through", pdfData, "application/octet-stream", FormatPDF},
		{"zip hint falls through", epubData, "application/zip", FormatEPUB},
		{"contradicting hint", epubData, "application/pdf", FormatEPUB},
		{"contradicting epub hint", pdfData, "application/epub+zip", FormatPDF},
		{"stored epub entry with pdf marker", epubWithPDFText, "", FormatEPUB},
		{"stored epub entry with pdf marker and hint", epubWithPDFText, "application/epub+zip", FormatEPUB},
		{"zip holding a pdf", zipWithPDFText, "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(Source{Data: tt.data, ContentType: tt.contentType})
			if got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	for f, want := range map[Format]string{FormatPDF: "pdf", FormatEPUB: "epub", FormatUnknown: "unknown"} {
		if f.String() != want {
			t.Errorf("%d.String() = %q, want %q", f, f.String(), want)
		}
	}
}

func TestSourceIdentity(t *testing.T) {
	a := Source{Data: []byte("document one")}
	b := Source{Data: []byte("document one"), ContentType: "application/pdf"}
	c := Source{Data: []byte("document two")}

	if len(a.Identity()) != 64 {
		t.Errorf("Identity() length = %d, want 64 hex digits", len(a.Identity()))
	}
	if a.Identity() != b.Identity() {
		t.Error("identity should depend only on the data")
	}
	if a.Identity() == c.Identity() {
		t.Error("different data should have different identities")
	}
}
