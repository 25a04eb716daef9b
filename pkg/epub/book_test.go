package epub

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewReader(t *testing.T) {
	b, err := openTestEPub(t, validEPubFiles())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer b.Close()

	if n := b.NumSections(); n != 3 {
		t.Fatalf("NumSections() = %d, want 3", n)
	}
	if b.PackagePath() != "OEBPS/content.opf" {
		t.Errorf("PackagePath() = %q", b.PackagePath())
	}

	md := b.Metadata()
	want := Metadata{
		Version:    "3.0",
		Title:      "Test Book",
		Creators:   []string{"Ada Author", "Bo Writer"},
		Language:   "en",
		Identifier: "urn:uuid:1234",
	}
	if !reflect.DeepEqual(md, want) {
		t.Errorf("Metadata() = %+v, want %+v", md, want)
	}

	sections := b.Sections()
	if sections[1].Href != "OEBPS/text/ch2.xhtml" || sections[1].Index != 1 || !sections[1].Linear {
		t.Errorf("unexpected section %+v", sections[1])
	}
	if len(b.Warnings()) != 0 {
		t.Errorf("unexpected warnings %v", b.Warnings())
	}
}

func TestSectionContent(t *testing.T) {
	b, err := openTestEPub(t, validEPubFiles())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer b.Close()

	c, err := b.SectionContent(0)
	if err != nil {
		t.Fatalf("SectionContent: %v", err)
	}
	if c.Title != "Chapter 1" {
		t.Errorf("Title = %q", c.Title)
	}
	want := []string{"Chapter 1", "First paragraph of chapter 1.", "Second paragraph."}
	if got := c.Paragraphs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paragraphs() = %q, want %q", got, want)
	}

	if _, err := b.SectionContent(3); !errors.Is(err, ErrSectionRange) {
		t.Errorf("SectionContent(3) error = %v, want ErrSectionRange", err)
	}
	if _, err := b.SectionContent(-1); !errors.Is(err, ErrSectionRange) {
		t.Errorf("SectionContent(-1) error = %v, want ErrSectionRange", err)
	}
}

func TestMalformedPackage(t *testing.T) {
	item := `<item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>`
	tests := []struct {
		name     string
		manifest string
		spine    string
	}{
		{"empty manifest", "", `<itemref idref="ch1"/>`},
		{"empty spine", item, ""},
		{"dangling itemref", item, `<itemref idref="missing"/>`},
		{"no content documents", `<item id="img" href="cover.png" media-type="image/png"/>`, `<itemref idref="img"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{
				"mimetype":               "application/epub+zip",
				"META-INF/container.xml": testContainer,
				"OEBPS/content.opf":      testOPF(tt.manifest, tt.spine),
				"OEBPS/ch1.xhtml":        chapterXHTML("One", "<p>one</p>"),
				"OEBPS/cover.png":        "png",
			}
			b, err := openTestEPub(t, files)
			if !errors.Is(err, ErrInvalidEPub) {
				t.Fatalf("error = %v, want ErrInvalidEPub", err)
			}
			if b != nil {
				t.Error("no book should be returned on failure")
			}
		})
	}
}

func TestInvalidArchive(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("%PDF-1.4 definitely not a zip")},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data), int64(len(tt.data)))
			if !errors.Is(err, ErrInvalidEPub) {
				t.Errorf("error = %v, want ErrInvalidEPub", err)
			}
		})
	}

	_, err := openTestEPub(t, map[string]string{
		"mimetype":  "application/epub+zip",
		"README.md": "no package here",
	})
	if !errors.Is(err, ErrInvalidEPub) {
		t.Errorf("archive without OPF: error = %v, want ErrInvalidEPub", err)
	}
}

func TestPackageFallback(t *testing.T) {
	files := validEPubFiles()
	delete(files, "META-INF/container.xml")

	b, err := openTestEPub(t, files)
	if err != nil {
		t.Fatalf("NewReader without container.xml: %v", err)
	}
	if b.PackagePath() != "OEBPS/content.opf" || b.NumSections() != 3 {
		t.Errorf("fallback opened %s with %d sections", b.PackagePath(), b.NumSections())
	}
}

func TestMimetypeWarning(t *testing.T) {
	files := validEPubFiles()
	files["mimetype"] = "application/zip"

	b, err := openTestEPub(t, files)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	warnings := b.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unexpected mimetype") {
		t.Errorf("Warnings() = %v", warnings)
	}
}

func TestSkippedSpineItems(t *testing.T) {
	files := validEPubFiles()
	files["OEBPS/content.opf"] = testOPF(
		`<item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
		 <item id="gone" href="text/gone.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="gone"/><itemref idref="ch1" linear="no"/><itemref idref="nope"/>`,
	)

	b, err := openTestEPub(t, files)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if b.NumSections() != 1 {
		t.Fatalf("NumSections() = %d, want 1", b.NumSections())
	}
	if s := b.Sections()[0]; s.Index != 0 || s.ID != "ch1" || s.Linear {
		t.Errorf("unexpected section %+v", s)
	}
	if len(b.Warnings()) != 2 {
		t.Errorf("expected two warnings, got %v", b.Warnings())
	}
}

func TestDRM(t *testing.T) {
	encryption := func(algorithm string) string {
		return `<?xml version="1.0" encoding="UTF-8"?>
<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container"
            xmlns:enc="http://www.w3.org/2001/04/xmlenc#">
  <enc:EncryptedData>
    <enc:EncryptionMethod Algorithm="` + algorithm + `"/>
    <enc:CipherData><enc:CipherReference URI="OEBPS/fonts/f.otf"/></enc:CipherData>
  </enc:EncryptedData>
</encryption>`
	}

	tests := []struct {
		name    string
		extra   map[string]string
		wantErr error
		warned  bool
	}{
		{"font obfuscation idpf", map[string]string{"META-INF/encryption.xml": encryption("http://www.idpf.org/2008/embedding")}, nil, true},
		{"font obfuscation adobe", map[string]string{"META-INF/encryption.xml": encryption("http://ns.adobe.com/pdf/enc#RC")}, nil, true},
		{"aes content", map[string]string{"META-INF/encryption.xml": encryption("http://www.w3.org/2001/04/xmlenc#aes128-cbc")}, ErrDRMProtected, false},
		{"unparseable encryption", map[string]string{"META-INF/encryption.xml": "<encryption"}, ErrDRMProtected, false},
		{"rights", map[string]string{"META-INF/rights.xml": "<rights/>"}, ErrDRMProtected, false},
		{"fairplay", map[string]string{"META-INF/sinf.xml": "<sinf/>"}, ErrDRMProtected, false},
		{"empty encryption", map[string]string{"META-INF/encryption.xml": `<encryption/>`}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := validEPubFiles()
			for k, v := range tt.extra {
				files[k] = v
			}
			b, err := openTestEPub(t, files)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := len(b.Warnings()) > 0; got != tt.warned {
				t.Errorf("warned = %v, want %v (%v)", got, tt.warned, b.Warnings())
			}
		})
	}
}

func TestOpenAndClose(t *testing.T) {
	b, err := Open(writeTestEPubFile(t, validEPubFiles()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := b.ReadFile("oebps/STYLE.css"); err != nil {
		t.Errorf("case-insensitive ReadFile: %v", err)
	}
	if _, err := b.ReadFile("OEBPS/none.css"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile(missing) error = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := b.SectionContent(0); !errors.Is(err, ErrClosed) {
		t.Errorf("SectionContent after Close = %v, want ErrClosed", err)
	}
	if _, err := b.ReadFile("OEBPS/style.css"); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadFile after Close = %v, want ErrClosed", err)
	}
}
