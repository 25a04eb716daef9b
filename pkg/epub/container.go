package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

const (
	containerPath  = "META-INF/container.xml"
	encryptionPath = "META-INF/encryption.xml"
	rightsPath     = "META-INF/rights.xml"
	sinfPath       = "META-INF/sinf.xml"
)

// OPF and container queries match on local-name() so that default and
// prefixed namespaces are treated alike.
var (
	rootfileExpr   = xpath.MustCompile(`//*[local-name()='rootfile']`)
	encryptedExpr  = xpath.MustCompile(`//*[local-name()='EncryptedData']`)
	methodExpr     = xpath.MustCompile(`*[local-name()='EncryptionMethod']`)
	keyInfoExpr    = xpath.MustCompile(`*[local-name()='KeyInfo']`)
	fontAlgorithms = map[string]bool{
		"http://www.idpf.org/2008/embedding": true,
		"http://ns.adobe.com/pdf/enc#RC":     true,
	}
)

// parseXML parses an archive XML document with xmlquery.
func parseXML(data []byte) (*xmlquery.Node, error) {
	return xmlquery.Parse(bytes.NewReader(stripBOM(data)))
}

// locatePackage returns the archive path of the OPF package document. It
// reads container.xml and, failing that, falls back to the first .opf entry.
func (b *Book) locatePackage() (string, error) {
	if f := b.findFile(containerPath); f != nil {
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("epub: read container.xml: %w", err)
		}
		doc, err := parseXML(data)
		if err != nil {
			return "", fmt.Errorf("epub: parse container.xml: %v: %w", err, ErrInvalidEPub)
		}

		var fallback string
		for _, rf := range xmlquery.QuerySelectorAll(doc, rootfileExpr) {
			fullPath := strings.TrimSpace(rf.SelectAttr("full-path"))
			if fullPath == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(rf.SelectAttr("media-type")), "application/oebps-package+xml") {
				return fullPath, nil
			}
			if fallback == "" {
				fallback = fullPath
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		b.warn("container.xml has no usable rootfile; scanning for a package document")
	}

	for _, f := range b.zip.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epub: no package document in archive: %w", ErrInvalidEPub)
}

// checkDRM rejects archives whose content is encrypted. Font obfuscation is
// not DRM and only produces a warning.
func (b *Book) checkDRM() error {
	if b.findFile(sinfPath) != nil || b.findFile(rightsPath) != nil {
		return ErrDRMProtected
	}

	f := b.findFile(encryptionPath)
	if f == nil {
		return nil
	}
	data, err := readZipFile(f)
	if err != nil {
		return err
	}
	doc, err := parseXML(data)
	if err != nil {
		return ErrDRMProtected
	}

	obfuscated := false
	for _, ed := range xmlquery.QuerySelectorAll(doc, encryptedExpr) {
		var algorithm string
		if m := xmlquery.QuerySelector(ed, methodExpr); m != nil {
			algorithm = strings.TrimSpace(m.SelectAttr("Algorithm"))
		}
		if !fontAlgorithms[algorithm] {
			return ErrDRMProtected
		}
		if ki := xmlquery.QuerySelector(ed, keyInfoExpr); ki != nil && isDRMKeyInfo(ki.OutputXML(true)) {
			return ErrDRMProtected
		}
		obfuscated = true
	}
	if obfuscated {
		b.warn("font obfuscation detected; embedded fonts are ignored")
	}
	return nil
}

func isDRMKeyInfo(s string) bool {
	return strings.Contains(s, "http://ns.adobe.com/adept") ||
		strings.Contains(s, "http://readium.org/2014/01/lcp")
}

// findFile looks up an entry by exact name, then case-insensitively.
func (b *Book) findFile(name string) *zip.File {
	if f, ok := b.zipExact[name]; ok {
		return f
	}
	if f, ok := b.zipLower[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

func (b *Book) buildZipIndex() {
	b.zipExact = make(map[string]*zip.File, len(b.zip.File))
	b.zipLower = make(map[string]*zip.File, len(b.zip.File))
	for _, f := range b.zip.File {
		if _, ok := b.zipExact[f.Name]; !ok {
			b.zipExact[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := b.zipLower[lower]; !ok {
			b.zipLower[lower] = f
		}
	}
}
