package pdf

import (
	"bytes"
	"errors"
)

// Rectangle represents a PDF rectangle
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the rectangle width
func (r Rectangle) Width() float64 {
	return r.URX - r.LLX
}

// Height returns the rectangle height
func (r Rectangle) Height() float64 {
	return r.URY - r.LLY
}

// Empty reports whether the rectangle has no area
func (r Rectangle) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// normalize orders the corners so LL is below and left of UR
func (r Rectangle) normalize() Rectangle {
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

// intersect clips r to o
func (r Rectangle) intersect(o Rectangle) Rectangle {
	out := Rectangle{
		LLX: max(r.LLX, o.LLX), LLY: max(r.LLY, o.LLY),
		URX: min(r.URX, o.URX), URY: min(r.URY, o.URY),
	}
	if out.Empty() {
		return r
	}
	return out
}

// defaultMediaBox is US Letter, used when no MediaBox is inherited
var defaultMediaBox = Rectangle{0, 0, 612, 792}

// Page represents a leaf of the page tree with inherited attributes resolved
type Page struct {
	doc        *Document
	Dictionary Dictionary
	Number     int
	MediaBox   Rectangle
	CropBox    Rectangle
	Rotate     int
	Resources  Dictionary
}

// inherited carries the page attributes that flow down the page tree
type inherited struct {
	resources Dictionary
	mediaBox  *Rectangle
	cropBox   *Rectangle
	rotate    int
}

// loadPages walks the page tree from the catalog
func (d *Document) loadPages() error {
	d.pages = nil
	root, ok := d.resolveDict(d.Root.Get("Pages"))
	if !ok {
		return errors.New("pdf: page tree missing")
	}
	visited := make(map[int]bool)
	if ref, ok := d.Root.Get("Pages").(Reference); ok {
		visited[ref.ObjectNumber] = true
	}
	return d.walkPageTree(root, inherited{}, visited, 0)
}

func (d *Document) walkPageTree(node Dictionary, inh inherited, visited map[int]bool, depth int) error {
	if depth > maxResolveDepth {
		return errors.New("pdf: page tree too deep")
	}

	if res, ok := d.resolveDict(node.Get("Resources")); ok {
		inh.resources = res
	}
	if r, ok := d.rectangle(node.Get("MediaBox")); ok {
		inh.mediaBox = &r
	}
	if r, ok := d.rectangle(node.Get("CropBox")); ok {
		inh.cropBox = &r
	}
	if rot, err := d.ResolveObject(node.Get("Rotate")); err == nil {
		if n, ok := rot.(Integer); ok {
			inh.rotate = int(n)
		}
	}

	nodeType, _ := node.GetName("Type")
	kids, hasKids := d.resolveArray(node.Get("Kids"))
	if nodeType == "Page" || (nodeType != "Pages" && !hasKids) {
		d.pages = append(d.pages, newPage(d, node, len(d.pages)+1, inh))
		return nil
	}

	for _, kid := range kids {
		if ref, ok := kid.(Reference); ok {
			if visited[ref.ObjectNumber] {
				continue
			}
			visited[ref.ObjectNumber] = true
		}
		kidDict, ok := d.resolveDict(kid)
		if !ok {
			continue
		}
		if err := d.walkPageTree(kidDict, inh, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func newPage(d *Document, dict Dictionary, number int, inh inherited) *Page {
	media := defaultMediaBox
	if inh.mediaBox != nil && !inh.mediaBox.Empty() {
		media = *inh.mediaBox
	}
	crop := media
	if inh.cropBox != nil && !inh.cropBox.Empty() {
		crop = inh.cropBox.intersect(media)
	}

	rotate := inh.rotate % 360
	if rotate < 0 {
		rotate += 360
	}
	rotate = rotate / 90 * 90

	return &Page{
		doc:        d,
		Dictionary: dict,
		Number:     number,
		MediaBox:   media,
		CropBox:    crop,
		Rotate:     rotate,
		Resources:  inh.resources,
	}
}

// rectangle resolves a four-number array
func (d *Document) rectangle(obj Object) (Rectangle, bool) {
	arr, ok := d.resolveArray(obj)
	if !ok || len(arr) != 4 {
		return Rectangle{}, false
	}
	var v [4]float64
	for i, item := range arr {
		resolved, err := d.ResolveObject(item)
		if err != nil {
			return Rectangle{}, false
		}
		f, ok := toFloat(resolved)
		if !ok {
			return Rectangle{}, false
		}
		v[i] = f
	}
	return Rectangle{v[0], v[1], v[2], v[3]}.normalize(), true
}

// Size returns the displayed size of the page in points, after rotation
func (p *Page) Size() (width, height float64) {
	if p.Rotate == 90 || p.Rotate == 270 {
		return p.CropBox.Height(), p.CropBox.Width()
	}
	return p.CropBox.Width(), p.CropBox.Height()
}

// Contents returns the page's decoded content, concatenating content arrays
func (p *Page) Contents() ([]byte, error) {
	obj, err := p.doc.ResolveObject(p.Dictionary.Get("Contents"))
	if err != nil {
		return nil, err
	}

	switch contents := obj.(type) {
	case nil, Null:
		return nil, nil
	case Stream:
		return contents.Decode()
	case Array:
		var buf bytes.Buffer
		for _, ref := range contents {
			streamObj, err := p.doc.ResolveObject(ref)
			if err != nil {
				continue
			}
			if stream, ok := streamObj.(Stream); ok {
				data, err := stream.Decode()
				if err != nil {
					continue
				}
				buf.Write(data)
				buf.WriteByte('\n')
			}
		}
		return buf.Bytes(), nil
	}
	return nil, errors.New("pdf: invalid page Contents")
}
