package pdf

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/novvoo/go-docview/internal/raster"
)

const (
	// maxFormDepth bounds nested form XObjects
	maxFormDepth = 12
	// ctxCheckInterval is how many operations run between cancellation checks
	ctxCheckInterval = 128
)

// PageRenderer rasterizes pages of one document. It is safe for concurrent use.
type PageRenderer struct {
	doc *Document

	mu    sync.Mutex
	fonts map[int]*pdfFont
	plain *pdfFont
}

// NewPageRenderer creates a new page renderer
func NewPageRenderer(doc *Document) *PageRenderer {
	return &PageRenderer{
		doc:   doc,
		fonts: make(map[int]*pdfFont),
	}
}

// Viewport returns the pixel size of a page at scale (1 unit = 1 pixel at
// scale 1) and the matrix mapping default user space to device pixels,
// including the page's /Rotate.
func Viewport(page *Page, scale float64) (width, height int, base Matrix) {
	if scale <= 0 {
		scale = 1
	}
	box := page.CropBox
	s := scale
	w, h := box.Width()*s, box.Height()*s

	switch page.Rotate {
	case 90:
		base = Matrix{0, s, s, 0, -box.LLY * s, -box.LLX * s}
		w, h = h, w
	case 180:
		base = Matrix{-s, 0, 0, s, box.URX * s, -box.LLY * s}
	case 270:
		base = Matrix{0, -s, -s, 0, box.URY * s, box.URX * s}
		w, h = h, w
	default:
		base = Matrix{s, 0, 0, -s, -box.LLX * s, box.URY * s}
	}
	return pixels(w), pixels(h), base
}

func pixels(v float64) int {
	n := int(math.Ceil(v - 1e-6))
	if n < 1 {
		return 1
	}
	return n
}

// RenderPage rasterizes page pageNum (1-indexed) on a white background
func (r *PageRenderer) RenderPage(ctx context.Context, pageNum int, scale float64) (*image.RGBA, error) {
	page, err := r.doc.Page(pageNum)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h, base := Viewport(page, scale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	raster.Fill(img, color.White)

	contents, err := page.Contents()
	if err != nil {
		return nil, fmt.Errorf("page %d contents: %w", pageNum, err)
	}
	ops, err := NewContentStreamParser(contents).ParseOperations()
	if err != nil && len(ops) == 0 {
		return nil, fmt.Errorf("page %d contents: %w", pageNum, err)
	}

	in := &interpreter{
		ctx:  ctx,
		r:    r,
		dst:  img,
		base: base,
		gs:   newGraphicsState(Identity),
	}
	if err := in.run(ops, page.Resources, 0); err != nil {
		return nil, err
	}
	return img, nil
}

// fontFor returns the cached font for a font resource
func (r *PageRenderer) fontFor(obj Object) *pdfFont {
	ref, isRef := obj.(Reference)
	if isRef {
		r.mu.Lock()
		f, ok := r.fonts[ref.ObjectNumber]
		r.mu.Unlock()
		if ok {
			return f
		}
	}
	dict, ok := r.doc.resolveDict(obj)
	if !ok {
		return r.defaultFont()
	}
	f := r.doc.loadFont(dict)
	if isRef {
		r.mu.Lock()
		r.fonts[ref.ObjectNumber] = f
		r.mu.Unlock()
	}
	return f
}

func (r *PageRenderer) defaultFont() *pdfFont {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plain == nil {
		r.plain = r.doc.loadFont(Dictionary{"BaseFont": Name("Helvetica"), "Subtype": Name("Type1")})
	}
	return r.plain
}

// resolveColorSpace resolves a colour space name or array
func (r *PageRenderer) resolveColorSpace(obj Object, resources Dictionary) colorSpace {
	obj, _ = r.doc.ResolveObject(obj)
	if name, ok := obj.(Name); ok {
		switch name {
		case "DeviceGray", "CalGray", "G":
			return colorSpace{family: "DeviceGray", components: 1}
		case "DeviceRGB", "CalRGB", "RGB":
			return colorSpace{family: "DeviceRGB", components: 3}
		case "DeviceCMYK", "CMYK":
			return colorSpace{family: "DeviceCMYK", components: 4}
		case "Pattern":
			return colorSpace{family: "Pattern"}
		}
		if csDict, ok := r.doc.resolveDict(resources.Get("ColorSpace")); ok {
			if def := csDict.Get(string(name)); def != nil {
				return r.resolveColorSpace(def, Dictionary{})
			}
		}
		return colorSpace{family: name, components: 1}
	}

	arr, ok := obj.(Array)
	if !ok || len(arr) == 0 {
		return colorSpace{}
	}
	family, _ := arr[0].(Name)
	switch family {
	case "ICCBased":
		if len(arr) > 1 {
			if d, ok := r.doc.resolveDict(arr[1]); ok {
				if n, ok := r.intValue(d.Get("N")); ok && (n == 1 || n == 3 || n == 4) {
					return r.resolveColorSpace(Name(map[int]string{1: "DeviceGray", 3: "DeviceRGB", 4: "DeviceCMYK"}[n]), resources)
				}
			}
		}
		return colorSpace{family: "DeviceRGB", components: 3}
	case "Indexed", "I":
		if len(arr) < 4 {
			return colorSpace{}
		}
		base := r.resolveColorSpace(arr[1], resources)
		hival, _ := r.intValue(arr[2])
		var lookup []byte
		switch l := mustResolve(r.doc, arr[3]).(type) {
		case String:
			lookup = l.Value
		case Stream:
			lookup, _ = l.Decode()
		}
		return colorSpace{family: "Indexed", components: 1, indexed: &indexedSpace{base: base, hival: hival, lookup: lookup}}
	case "Separation":
		return colorSpace{family: "Separation", components: 1}
	case "DeviceN":
		n := 1
		if len(arr) > 1 {
			if names, ok := r.doc.resolveArray(arr[1]); ok {
				n = len(names)
			}
		}
		if n == 4 {
			return colorSpace{family: "DeviceCMYK", components: 4}
		}
		return colorSpace{family: "DeviceN", components: n}
	case "Pattern":
		return colorSpace{family: "Pattern"}
	case "CalRGB", "Lab":
		return colorSpace{family: "DeviceRGB", components: 3}
	case "CalGray":
		return colorSpace{family: "DeviceGray", components: 1}
	}
	return r.resolveColorSpace(family, resources)
}

func mustResolve(d *Document, obj Object) Object {
	resolved, err := d.ResolveObject(obj)
	if err != nil {
		return Null{}
	}
	return resolved
}

// interpreter executes content stream operations against an image
type interpreter struct {
	ctx   context.Context
	r     *PageRenderer
	dst   *image.RGBA
	base  Matrix
	gs    GraphicsState
	stack []GraphicsState
	path  path
	count int

	textMatrix Matrix
	lineMatrix Matrix
}

func (in *interpreter) device() Matrix {
	return in.gs.CTM.Multiply(in.base)
}

func (in *interpreter) run(ops []Operation, resources Dictionary, depth int) error {
	for _, op := range ops {
		in.count++
		if in.count%ctxCheckInterval == 0 {
			if err := in.ctx.Err(); err != nil {
				return err
			}
		}
		if err := in.exec(op, resources, depth); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) exec(op Operation, resources Dictionary, depth int) error {
	args, _ := numbers(op.Operands)
	gs := &in.gs

	switch op.Operator {
	// graphics state
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixFrom(args); ok {
			gs.CTM = m.Multiply(gs.CTM)
		}
	case "w":
		if len(args) == 1 {
			gs.LineWidth = args[0]
		}
	case "gs":
		in.applyExtGState(op.Operands, resources)

	// path construction
	case "m":
		if len(args) == 2 {
			x, y := in.device().Apply(args[0], args[1])
			in.path.moveTo(x, y)
		}
	case "l":
		if len(args) == 2 {
			x, y := in.device().Apply(args[0], args[1])
			in.path.lineTo(x, y)
		}
	case "c":
		if len(args) == 6 {
			d := in.device()
			x1, y1 := d.Apply(args[0], args[1])
			x2, y2 := d.Apply(args[2], args[3])
			x3, y3 := d.Apply(args[4], args[5])
			in.path.cubicTo(x1, y1, x2, y2, x3, y3)
		}
	case "v":
		if cur, ok := in.path.current(); ok && len(args) == 4 {
			d := in.device()
			x2, y2 := d.Apply(args[0], args[1])
			x3, y3 := d.Apply(args[2], args[3])
			in.path.cubicTo(cur.X, cur.Y, x2, y2, x3, y3)
		}
	case "y":
		if len(args) == 4 {
			d := in.device()
			x1, y1 := d.Apply(args[0], args[1])
			x3, y3 := d.Apply(args[2], args[3])
			in.path.cubicTo(x1, y1, x3, y3, x3, y3)
		}
	case "h":
		in.path.close()
	case "re":
		if len(args) == 4 {
			d := in.device()
			x, y, w, h := args[0], args[1], args[2], args[3]
			x0, y0 := d.Apply(x, y)
			x1, y1 := d.Apply(x+w, y)
			x2, y2 := d.Apply(x+w, y+h)
			x3, y3 := d.Apply(x, y+h)
			in.path.moveTo(x0, y0)
			in.path.lineTo(x1, y1)
			in.path.lineTo(x2, y2)
			in.path.lineTo(x3, y3)
			in.path.close()
		}

	// painting; even-odd is approximated by nonzero, clipping is not applied
	case "f", "F", "f*":
		in.fill()
		in.path.reset()
	case "S":
		in.stroke()
		in.path.reset()
	case "s":
		in.path.close()
		in.stroke()
		in.path.reset()
	case "B", "B*":
		in.fill()
		in.stroke()
		in.path.reset()
	case "b", "b*":
		in.path.close()
		in.fill()
		in.stroke()
		in.path.reset()
	case "n":
		in.path.reset()
	case "W", "W*":

	// colour
	case "g":
		gs.FillSpace = colorSpace{family: "DeviceGray", components: 1}
		gs.Fill = gs.FillSpace.toRGBA(args)
	case "G":
		gs.StrokeSpace = colorSpace{family: "DeviceGray", components: 1}
		gs.Stroke = gs.StrokeSpace.toRGBA(args)
	case "rg":
		gs.FillSpace = colorSpace{family: "DeviceRGB", components: 3}
		gs.Fill = gs.FillSpace.toRGBA(args)
	case "RG":
		gs.StrokeSpace = colorSpace{family: "DeviceRGB", components: 3}
		gs.Stroke = gs.StrokeSpace.toRGBA(args)
	case "k":
		gs.FillSpace = colorSpace{family: "DeviceCMYK", components: 4}
		gs.Fill = gs.FillSpace.toRGBA(args)
	case "K":
		gs.StrokeSpace = colorSpace{family: "DeviceCMYK", components: 4}
		gs.Stroke = gs.StrokeSpace.toRGBA(args)
	case "cs":
		if len(op.Operands) == 1 {
			gs.FillSpace = in.r.resolveColorSpace(op.Operands[0], resources)
			gs.Fill = initialColor(gs.FillSpace)
		}
	case "CS":
		if len(op.Operands) == 1 {
			gs.StrokeSpace = in.r.resolveColorSpace(op.Operands[0], resources)
			gs.Stroke = initialColor(gs.StrokeSpace)
		}
	case "sc", "scn":
		if v := leadingNumbers(op.Operands); len(v) > 0 {
			gs.Fill = gs.FillSpace.toRGBA(v)
		}
	case "SC", "SCN":
		if v := leadingNumbers(op.Operands); len(v) > 0 {
			gs.Stroke = gs.StrokeSpace.toRGBA(v)
		}

	// text
	case "BT":
		in.textMatrix = Identity
		in.lineMatrix = Identity
	case "ET":
	case "Tf":
		if len(op.Operands) == 2 {
			if name, ok := op.Operands[0].(Name); ok {
				gs.Text.Font = in.fontResource(name, resources)
			}
			if size, ok := toFloat(op.Operands[1]); ok {
				gs.Text.FontSize = size
			}
		}
	case "Tc":
		if len(args) == 1 {
			gs.Text.CharSpace = args[0]
		}
	case "Tw":
		if len(args) == 1 {
			gs.Text.WordSpace = args[0]
		}
	case "Tz":
		if len(args) == 1 {
			gs.Text.Scale = args[0]
		}
	case "TL":
		if len(args) == 1 {
			gs.Text.Leading = args[0]
		}
	case "Ts":
		if len(args) == 1 {
			gs.Text.Rise = args[0]
		}
	case "Tr":
		if len(args) == 1 {
			gs.Text.RenderMode = int(args[0])
		}
	case "Td":
		if len(args) == 2 {
			in.moveText(args[0], args[1])
		}
	case "TD":
		if len(args) == 2 {
			gs.Text.Leading = -args[1]
			in.moveText(args[0], args[1])
		}
	case "Tm":
		if m, ok := matrixFrom(args); ok {
			in.textMatrix = m
			in.lineMatrix = m
		}
	case "T*":
		in.moveText(0, -gs.Text.Leading)
	case "Tj":
		if len(op.Operands) == 1 {
			if s, ok := op.Operands[0].(String); ok {
				in.showText(s.Value)
			}
		}
	case "'":
		in.moveText(0, -gs.Text.Leading)
		if len(op.Operands) == 1 {
			if s, ok := op.Operands[0].(String); ok {
				in.showText(s.Value)
			}
		}
	case "\"":
		if len(op.Operands) == 3 {
			gs.Text.WordSpace, _ = toFloat(op.Operands[0])
			gs.Text.CharSpace, _ = toFloat(op.Operands[1])
			in.moveText(0, -gs.Text.Leading)
			if s, ok := op.Operands[2].(String); ok {
				in.showText(s.Value)
			}
		}
	case "TJ":
		if len(op.Operands) == 1 {
			if arr, ok := op.Operands[0].(Array); ok {
				in.showTextArray(arr)
			}
		}

	// XObjects and images
	case "Do":
		if len(op.Operands) == 1 {
			if name, ok := op.Operands[0].(Name); ok {
				return in.doXObject(name, resources, depth)
			}
		}
	case "BI":
		if len(op.Operands) == 2 {
			dict, _ := op.Operands[0].(Dictionary)
			data, _ := op.Operands[1].(String)
			in.drawImage(expandInlineImage(dict, data.Value), resources)
		}
	}
	return nil
}

// initialColor is the colour selected by cs/CS before any sc
func initialColor(cs colorSpace) color.RGBA {
	switch {
	case cs.indexed != nil:
		return cs.indexed.color(0)
	case cs.family == "DeviceCMYK":
		return cs.toRGBA([]float64{0, 0, 0, 1})
	case cs.family == "Separation" || cs.family == "DeviceN":
		return cs.toRGBA(make([]float64, max(cs.components, 1)))
	}
	return color.RGBA{A: 255}
}

// leadingNumbers collects numeric operands, ignoring a trailing pattern name
func leadingNumbers(objs []Object) []float64 {
	var out []float64
	for _, o := range objs {
		if f, ok := toFloat(o); ok {
			out = append(out, f)
		}
	}
	return out
}

func (in *interpreter) fill() {
	fillPath(in.dst, &in.path, withAlpha(in.gs.Fill, in.gs.FillAlpha))
}

func (in *interpreter) stroke() {
	width := in.gs.LineWidth * in.device().Scale()
	outline := strokeOutline(&in.path, width)
	fillPath(in.dst, outline, withAlpha(in.gs.Stroke, in.gs.StrokeAlpha))
}

func (in *interpreter) applyExtGState(operands []Object, resources Dictionary) {
	if len(operands) != 1 {
		return
	}
	name, ok := operands[0].(Name)
	if !ok {
		return
	}
	states, ok := in.r.doc.resolveDict(resources.Get("ExtGState"))
	if !ok {
		return
	}
	state, ok := in.r.doc.resolveDict(states.Get(string(name)))
	if !ok {
		return
	}
	if v, ok := toFloat(mustResolve(in.r.doc, state.Get("CA"))); ok {
		in.gs.StrokeAlpha = v
	}
	if v, ok := toFloat(mustResolve(in.r.doc, state.Get("ca"))); ok {
		in.gs.FillAlpha = v
	}
	if v, ok := toFloat(mustResolve(in.r.doc, state.Get("LW"))); ok {
		in.gs.LineWidth = v
	}
}

func (in *interpreter) fontResource(name Name, resources Dictionary) *pdfFont {
	fonts, ok := in.r.doc.resolveDict(resources.Get("Font"))
	if !ok {
		return in.r.defaultFont()
	}
	obj := fonts.Get(string(name))
	if obj == nil {
		return in.r.defaultFont()
	}
	return in.r.fontFor(obj)
}

func (in *interpreter) moveText(tx, ty float64) {
	in.lineMatrix = Matrix{1, 0, 0, 1, tx, ty}.Multiply(in.lineMatrix)
	in.textMatrix = in.lineMatrix
}

// showText draws a string with the current font and advances the text matrix
func (in *interpreter) showText(s []byte) {
	ts := &in.gs.Text
	font := ts.Font
	if font == nil {
		font = in.r.defaultFont()
	}
	th := ts.Scale / 100
	mode := ts.RenderMode % 4
	glyphs := &path{}

	for _, c := range font.decode(s) {
		if mode != 3 {
			trm := Matrix{ts.FontSize * th, 0, 0, ts.FontSize, 0, ts.Rise}.
				Multiply(in.textMatrix).Multiply(in.device())
			offset := 0.0
			for _, r := range c.text {
				if r == ' ' || r < 0x20 {
					offset += font.glyphAdvance(font.face.Index(r))
					continue
				}
				g := Matrix{1.0 / glyphUnits, 0, 0, 1.0 / glyphUnits, offset / glyphUnits, 0}.Multiply(trm)
				glyphs.appendTransformed(font.glyphOutline(r), g)
				offset += font.glyphAdvance(font.face.Index(r))
			}
		}

		tx := font.width(c)/1000*ts.FontSize + ts.CharSpace
		if c.single {
			tx += ts.WordSpace
		}
		in.textMatrix = Matrix{1, 0, 0, 1, tx * th, 0}.Multiply(in.textMatrix)
	}

	switch mode {
	case 0, 2:
		fillPath(in.dst, glyphs, withAlpha(in.gs.Fill, in.gs.FillAlpha))
	case 1:
		fillPath(in.dst, glyphs, withAlpha(in.gs.Stroke, in.gs.StrokeAlpha))
	}
}

func (in *interpreter) showTextArray(arr Array) {
	ts := &in.gs.Text
	for _, item := range arr {
		switch v := item.(type) {
		case String:
			in.showText(v.Value)
		case Integer, Real:
			n, _ := toFloat(v)
			tx := -n / 1000 * ts.FontSize * ts.Scale / 100
			in.textMatrix = Matrix{1, 0, 0, 1, tx, 0}.Multiply(in.textMatrix)
		}
	}
}

func (in *interpreter) doXObject(name Name, resources Dictionary, depth int) error {
	xobjects, ok := in.r.doc.resolveDict(resources.Get("XObject"))
	if !ok {
		return nil
	}
	obj := mustResolve(in.r.doc, xobjects.Get(string(name)))
	stream, ok := obj.(Stream)
	if !ok {
		return nil
	}

	switch subtype, _ := stream.Dictionary.GetName("Subtype"); subtype {
	case "Image":
		in.drawImage(stream, resources)
	case "Form":
		if depth >= maxFormDepth {
			return nil
		}
		data, err := stream.Decode()
		if err != nil {
			return nil
		}
		ops, _ := NewContentStreamParser(data).ParseOperations()

		formResources := resources
		if res, ok := in.r.doc.resolveDict(stream.Dictionary.Get("Resources")); ok {
			formResources = res
		}

		saved, savedStack := in.gs, len(in.stack)
		if arr, ok := in.r.doc.resolveArray(stream.Dictionary.Get("Matrix")); ok {
			if v, ok := numbers(arr); ok {
				if m, ok := matrixFrom(v); ok {
					in.gs.CTM = m.Multiply(in.gs.CTM)
				}
			}
		}
		err = in.run(ops, formResources, depth+1)
		in.gs = saved
		in.stack = in.stack[:min(savedStack, len(in.stack))]
		in.path.reset()
		return err
	}
	return nil
}

// drawImage maps the image onto the unit square of the current CTM
func (in *interpreter) drawImage(stream Stream, resources Dictionary) {
	img, err := in.r.decodeImage(stream, resources, in.gs.Fill)
	if err != nil {
		return
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	d := in.device()
	s2d := f64.Aff3{
		d[0] / w, -d[2] / h, d[2] + d[4],
		d[1] / w, -d[3] / h, d[3] + d[5],
	}
	draw.ApproxBiLinear.Transform(in.dst, s2d, img, b, draw.Over, nil)
}
