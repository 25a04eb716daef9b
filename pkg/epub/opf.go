package epub

import (
	"fmt"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	packageExpr  = xpath.MustCompile(`//*[local-name()='package']`)
	itemExpr     = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item']`)
	itemrefExpr  = xpath.MustCompile(`//*[local-name()='spine']/*[local-name()='itemref']`)
	titleExpr    = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='title']`)
	creatorExpr  = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='creator']`)
	languageExpr = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='language']`)
	identExpr    = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='identifier']`)
	publishExpr  = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='publisher']`)
	dateExpr     = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='date']`)
)

// manifestItem is one <item> of the OPF manifest.
type manifestItem struct {
	ID         string
	Href       string // archive path, resolved against the OPF directory
	MediaType  string
	Properties string
}

// isContentDocument reports whether the item can be shown as a section.
func (m *manifestItem) isContentDocument() bool {
	switch strings.ToLower(strings.TrimSpace(m.MediaType)) {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml":
		return true
	case "":
		switch strings.ToLower(path.Ext(m.Href)) {
		case ".xhtml", ".html", ".htm":
			return true
		}
	}
	return false
}

// parsePackage reads the OPF document and fills the manifest, the spine
// sections and the metadata. A package without manifest items, without
// itemrefs or without any itemref resolving to a content document is
// rejected with ErrInvalidEPub.
func (b *Book) parsePackage(opfPath string) error {
	f := b.findFile(opfPath)
	if f == nil {
		return fmt.Errorf("epub: package document %s not in archive: %w", opfPath, ErrInvalidEPub)
	}
	data, err := readZipFile(f)
	if err != nil {
		return fmt.Errorf("epub: read package document: %w", err)
	}
	doc, err := parseXML(data)
	if err != nil {
		return fmt.Errorf("epub: parse package document: %v: %w", err, ErrInvalidEPub)
	}

	pkg := xmlquery.QuerySelector(doc, packageExpr)
	if pkg == nil {
		return fmt.Errorf("epub: %s has no <package> root: %w", opfPath, ErrInvalidEPub)
	}
	b.metadata.Version = strings.TrimSpace(pkg.SelectAttr("version"))
	if b.metadata.Version == "" {
		b.metadata.Version = "2.0"
	}

	manifest := make(map[string]*manifestItem)
	for _, n := range xmlquery.QuerySelectorAll(doc, itemExpr) {
		id := strings.TrimSpace(n.SelectAttr("id"))
		href := resolvePath(opfPath, n.SelectAttr("href"))
		if id == "" || href == "" {
			b.warn(fmt.Sprintf("manifest item %q has no usable href", id))
			continue
		}
		manifest[id] = &manifestItem{
			ID:         id,
			Href:       href,
			MediaType:  strings.TrimSpace(n.SelectAttr("media-type")),
			Properties: n.SelectAttr("properties"),
		}
	}
	if len(manifest) == 0 {
		return fmt.Errorf("epub: manifest has no items: %w", ErrInvalidEPub)
	}

	refs := xmlquery.QuerySelectorAll(doc, itemrefExpr)
	if len(refs) == 0 {
		return fmt.Errorf("epub: spine has no itemrefs: %w", ErrInvalidEPub)
	}
	for _, ref := range refs {
		idref := strings.TrimSpace(ref.SelectAttr("idref"))
		item, ok := manifest[idref]
		switch {
		case !ok:
			b.warn(fmt.Sprintf("spine itemref %q has no manifest item", idref))
			continue
		case !item.isContentDocument():
			b.warn(fmt.Sprintf("spine itemref %q is %s, not a content document", idref, item.MediaType))
			continue
		case b.findFile(item.Href) == nil:
			b.warn(fmt.Sprintf("spine item %s is missing from the archive", item.Href))
			continue
		}
		b.sections = append(b.sections, Section{
			Index:     len(b.sections),
			ID:        item.ID,
			Href:      item.Href,
			MediaType: item.MediaType,
			Linear:    ref.SelectAttr("linear") != "no",
		})
	}
	if len(b.sections) == 0 {
		return fmt.Errorf("epub: spine has no readable sections: %w", ErrInvalidEPub)
	}

	b.metadata.Title = firstText(doc, titleExpr)
	for _, n := range xmlquery.QuerySelectorAll(doc, creatorExpr) {
		if name := cleanText(n.InnerText()); name != "" {
			b.metadata.Creators = append(b.metadata.Creators, name)
		}
	}
	b.metadata.Language = firstText(doc, languageExpr)
	b.metadata.Publisher = firstText(doc, publishExpr)
	b.metadata.Date = firstText(doc, dateExpr)
	b.metadata.Identifier = b.uniqueIdentifier(doc, pkg.SelectAttr("unique-identifier"))
	return nil
}

// uniqueIdentifier prefers the dc:identifier named by the package's
// unique-identifier attribute and falls back to the first identifier.
func (b *Book) uniqueIdentifier(doc *xmlquery.Node, id string) string {
	idents := xmlquery.QuerySelectorAll(doc, identExpr)
	for _, n := range idents {
		if id != "" && n.SelectAttr("id") == id {
			return cleanText(n.InnerText())
		}
	}
	if len(idents) > 0 {
		return cleanText(idents[0].InnerText())
	}
	return ""
}

func firstText(doc *xmlquery.Node, expr *xpath.Expr) string {
	if n := xmlquery.QuerySelector(doc, expr); n != nil {
		return cleanText(n.InnerText())
	}
	return ""
}

// cleanText collapses whitespace runs and applies NFC normalisation.
func cleanText(s string) string {
	return normalize(strings.Join(strings.Fields(s), " "))
}
