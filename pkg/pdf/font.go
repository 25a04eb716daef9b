package pdf

import (
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/novvoo/go-docview/internal/raster"
)

// glyphUnits is the em size glyph outlines and advances are expressed in
const glyphUnits = 1000

// pdfFont maps PDF character codes to substitute Go font glyphs
type pdfFont struct {
	baseFont     string
	face         *truetype.Font
	twoByte      bool
	firstChar    int
	widths       []float64
	cidWidths    map[int]float64
	defaultWidth float64
	toUnicode    map[int]string
	differences  map[int]rune

	mu      sync.Mutex
	outline map[truetype.Index]*path
	advance map[truetype.Index]float64
}

// charCode is one decoded character of a shown string
type charCode struct {
	code   int
	text   string
	single bool // single-byte code 32 gets word spacing
}

// loadFont builds a pdfFont from a font dictionary
func (d *Document) loadFont(dict Dictionary) *pdfFont {
	base, _ := dict.GetName("BaseFont")
	f := &pdfFont{
		baseFont:     string(base),
		face:         raster.Font(raster.StyleForName(string(base))),
		defaultWidth: -1,
		outline:      make(map[truetype.Index]*path),
		advance:      make(map[truetype.Index]float64),
	}

	subtype, _ := dict.GetName("Subtype")
	if subtype == "Type0" {
		f.twoByte = true
		f.cidWidths = make(map[int]float64)
		f.defaultWidth = 1000
		if desc, ok := d.resolveArray(dict.Get("DescendantFonts")); ok && len(desc) > 0 {
			if cid, ok := d.resolveDict(desc[0]); ok {
				d.loadCIDWidths(f, cid)
				if fd, ok := d.resolveDict(cid.Get("FontDescriptor")); ok {
					if name, ok := fd.GetName("FontName"); ok && base == "" {
						f.face = raster.Font(raster.StyleForName(string(name)))
					}
				}
			}
		}
	} else {
		if fc, err := d.ResolveObject(dict.Get("FirstChar")); err == nil {
			if n, ok := fc.(Integer); ok {
				f.firstChar = int(n)
			}
		}
		if widths, ok := d.resolveArray(dict.Get("Widths")); ok {
			f.widths = make([]float64, len(widths))
			for i, w := range widths {
				resolved, _ := d.ResolveObject(w)
				f.widths[i], _ = toFloat(resolved)
			}
		}
		if enc, ok := d.resolveDict(dict.Get("Encoding")); ok {
			f.differences = parseDifferences(enc)
		}
	}

	if obj, err := d.ResolveObject(dict.Get("ToUnicode")); err == nil {
		if s, ok := obj.(Stream); ok {
			if data, err := s.Decode(); err == nil {
				f.toUnicode = parseToUnicode(data)
			}
		}
	}
	return f
}

// loadCIDWidths reads DW and the W array of a CIDFont
func (d *Document) loadCIDWidths(f *pdfFont, cid Dictionary) {
	if dw, err := d.ResolveObject(cid.Get("DW")); err == nil {
		if v, ok := toFloat(dw); ok {
			f.defaultWidth = v
		}
	}
	w, ok := d.resolveArray(cid.Get("W"))
	if !ok {
		return
	}
	for i := 0; i < len(w); {
		first, ok := toFloat(w[i])
		if !ok || i+1 >= len(w) {
			return
		}
		if list, ok := w[i+1].(Array); ok {
			for k, item := range list {
				if v, ok := toFloat(item); ok {
					f.cidWidths[int(first)+k] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			return
		}
		last, ok1 := toFloat(w[i+1])
		v, ok2 := toFloat(w[i+2])
		if ok1 && ok2 && last-first < 65536 {
			for c := int(first); c <= int(last); c++ {
				f.cidWidths[c] = v
			}
		}
		i += 3
	}
}

// parseDifferences reads the /Differences array of an encoding dictionary
func parseDifferences(enc Dictionary) map[int]rune {
	diffs, ok := enc.GetArray("Differences")
	if !ok {
		return nil
	}
	out := make(map[int]rune)
	code := 0
	for _, item := range diffs {
		switch v := item.(type) {
		case Integer:
			code = int(v)
		case Name:
			if r, ok := glyphNameToRune(string(v)); ok {
				out[code] = r
			}
			code++
		}
	}
	return out
}

// parseToUnicode reads bfchar and bfrange sections of a ToUnicode CMap
func parseToUnicode(data []byte) map[int]string {
	ops, _ := NewContentStreamParser(data).ParseOperations()
	out := make(map[int]string)
	for _, op := range ops {
		switch op.Operator {
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src, ok1 := op.Operands[i].(String)
				dst, ok2 := op.Operands[i+1].(String)
				if ok1 && ok2 {
					out[codeOf(src.Value)] = decodeUTF16BE(dst.Value)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				lo, ok1 := op.Operands[i].(String)
				hi, ok2 := op.Operands[i+1].(String)
				if !ok1 || !ok2 {
					continue
				}
				start, end := codeOf(lo.Value), codeOf(hi.Value)
				if end < start || end-start > 65535 {
					continue
				}
				switch dst := op.Operands[i+2].(type) {
				case String:
					units := utf16.Decode(bytesToUTF16(dst.Value))
					if len(units) == 0 {
						continue
					}
					for c := start; c <= end; c++ {
						r := append([]rune(nil), units...)
						r[len(r)-1] += rune(c - start)
						out[c] = string(r)
					}
				case Array:
					for k, item := range dst {
						if s, ok := item.(String); ok && start+k <= end {
							out[start+k] = decodeUTF16BE(s.Value)
						}
					}
				}
			}
		}
	}
	return out
}

func codeOf(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func bytesToUTF16(b []byte) []uint16 {
	out := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return out
}

// decode splits a shown string into character codes
func (f *pdfFont) decode(s []byte) []charCode {
	var out []charCode
	if f.twoByte {
		for i := 0; i+1 < len(s); i += 2 {
			code := int(s[i])<<8 | int(s[i+1])
			out = append(out, charCode{code: code, text: f.unicode(code)})
		}
		return out
	}
	for _, b := range s {
		code := int(b)
		out = append(out, charCode{code: code, text: f.unicode(code), single: code == 32})
	}
	return out
}

// unicode maps a code to text, preferring ToUnicode, then Differences, then WinAnsi
func (f *pdfFont) unicode(code int) string {
	if s, ok := f.toUnicode[code]; ok {
		return s
	}
	if f.twoByte {
		return string(rune(code))
	}
	if r, ok := f.differences[code]; ok {
		return string(r)
	}
	if r, ok := winAnsi[byte(code)]; ok {
		return string(r)
	}
	return string(rune(code))
}

// width returns the advance of a code in 1/1000 text space units
func (f *pdfFont) width(c charCode) float64 {
	if f.twoByte {
		if w, ok := f.cidWidths[c.code]; ok {
			return w
		}
		return f.defaultWidth
	}
	if i := c.code - f.firstChar; i >= 0 && i < len(f.widths) && f.widths[i] > 0 {
		return f.widths[i]
	}
	r := []rune(c.text)
	if len(r) == 0 {
		return 0
	}
	return f.glyphAdvance(f.face.Index(r[0]))
}

func (f *pdfFont) glyphAdvance(idx truetype.Index) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.advance[idx]; ok {
		return a
	}
	a := float64(f.face.HMetric(fixed.I(glyphUnits), idx).AdvanceWidth) / 64
	f.advance[idx] = a
	return a
}

// glyphOutline returns the outline of r in glyph units, y up
func (f *pdfFont) glyphOutline(r rune) *path {
	idx := f.face.Index(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.outline[idx]; ok {
		return p
	}

	p := &path{}
	var gb truetype.GlyphBuf
	if err := gb.Load(f.face, fixed.I(glyphUnits), idx, font.HintingNone); err == nil {
		start := 0
		for _, end := range gb.Ends {
			contourPath(p, gb.Points[start:end])
			start = end
		}
	}
	f.outline[idx] = p
	return p
}

// contourPath converts one TrueType quadratic contour into path ops
func contourPath(p *path, pts []truetype.Point) {
	if len(pts) == 0 {
		return
	}
	toPt := func(tp truetype.Point) point {
		return point{float64(tp.X) / 64, float64(tp.Y) / 64}
	}
	on := func(tp truetype.Point) bool { return tp.Flags&1 != 0 }

	// Start on an on-curve point, synthesising one if needed.
	startIdx := -1
	for i, tp := range pts {
		if on(tp) {
			startIdx = i
			break
		}
	}
	var start point
	if startIdx < 0 {
		a, b := toPt(pts[0]), toPt(pts[1%len(pts)])
		start = point{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
		startIdx = 0
	} else {
		start = toPt(pts[startIdx])
		startIdx++
	}
	p.moveTo(start.X, start.Y)

	var ctrl *point
	n := len(pts)
	for k := 0; k < n; k++ {
		tp := pts[(startIdx+k)%n]
		cur := toPt(tp)
		if on(tp) {
			if ctrl != nil {
				p.quadTo(ctrl.X, ctrl.Y, cur.X, cur.Y)
				ctrl = nil
			} else {
				p.lineTo(cur.X, cur.Y)
			}
			continue
		}
		if ctrl != nil {
			mid := point{(ctrl.X + cur.X) / 2, (ctrl.Y + cur.Y) / 2}
			p.quadTo(ctrl.X, ctrl.Y, mid.X, mid.Y)
		}
		c := cur
		ctrl = &c
	}
	if ctrl != nil {
		p.quadTo(ctrl.X, ctrl.Y, start.X, start.Y)
	}
	p.close()
}

// winAnsi covers the WinAnsiEncoding codes that differ from Latin-1
var winAnsi = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„', 0x85: '…', 0x86: '†', 0x87: '‡',
	0x88: 'ˆ', 0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ', 0x8E: 'Ž',
	0x91: '‘', 0x92: '’', 0x93: '“', 0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›', 0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(',
	"parenright": ')', "asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-',
	"period": '.', "slash": '/', "zero": '0', "one": '1', "two": '2', "three": '3',
	"four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "underscore": '_', "braceleft": '{', "bar": '|',
	"braceright": '}', "asciitilde": '~', "quoteleft": '‘', "quoteright": '’',
	"quotedblleft": '“', "quotedblright": '”', "endash": '–', "emdash": '—',
	"bullet": '•', "ellipsis": '…', "fi": 'ﬁ', "fl": 'ﬂ', "degree": '°',
	"copyright": '©', "registered": '®', "trademark": '™', "Euro": '€',
	"eacute": 'é', "egrave": 'è', "agrave": 'à', "ccedilla": 'ç', "udieresis": 'ü',
	"odieresis": 'ö', "adieresis": 'ä', "germandbls": 'ß',
}

// glyphNameToRune resolves a glyph name: single letters, uniXXXX, uXXXX and
// a table of common names
func glyphNameToRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	for _, prefix := range []string{"uni", "u"} {
		if strings.HasPrefix(name, prefix) && len(name) >= len(prefix)+4 {
			if v, err := strconv.ParseUint(name[len(prefix):len(prefix)+4], 16, 32); err == nil {
				return rune(v), true
			}
		}
	}
	return 0, false
}
