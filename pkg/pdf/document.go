package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// maxResolveDepth bounds reference chains and page tree nesting
const maxResolveDepth = 64

// Document represents a parsed PDF document
type Document struct {
	data      []byte
	Version   string
	Trailer   Dictionary
	Root      Dictionary
	Info      Dictionary
	Recovered bool

	pages      []*Page
	xref       map[int]xrefEntry
	security   *SecurityHandler
	encryptNum int

	mu         sync.Mutex
	objects    map[int]Object
	objStreams map[int]*objectStream
	closed     bool
}

// xrefEntry represents an entry in the cross-reference table
type xrefEntry struct {
	Offset     int64
	Generation int
	InUse      bool
	// For compressed objects
	StreamObjNum int
	Index        int
}

// objectStream caches the decoded body and offset table of an ObjStm
type objectStream struct {
	data    []byte
	first   int64
	offsets []int64
}

// NewDocument parses PDF data. A damaged cross-reference section is rebuilt
// by scanning the file for object markers; Recovered reports when that
// happened.
func NewDocument(data []byte) (*Document, error) {
	doc := &Document{
		data:       data,
		xref:       make(map[int]xrefEntry),
		objects:    make(map[int]Object),
		objStreams: make(map[int]*objectStream),
	}
	if err := doc.parse(); err != nil {
		return nil, err
	}
	return doc, nil
}

// parse parses the PDF document
func (d *Document) parse() error {
	head := d.data
	if len(head) > 1024 {
		head = head[:1024]
	}
	start := bytes.Index(head, []byte("%PDF-"))
	if start < 0 {
		return ErrNotPDF
	}
	line := d.data[start+5:]
	if end := bytes.IndexAny(line, "\r\n"); end >= 0 {
		line = line[:end]
	}
	d.Version = string(bytes.TrimSpace(line))

	if err := d.loadXRef(); err != nil || d.Trailer.Get("Root") == nil {
		if rerr := d.reconstructXRef(); rerr != nil {
			if err == nil {
				err = rerr
			}
			return fmt.Errorf("pdf: cross-reference: %w", err)
		}
	}

	if err := d.setupEncryption(); err != nil {
		return err
	}

	if err := d.loadCatalog(); err != nil {
		if d.Recovered {
			return err
		}
		// The table parsed but points at garbage; rebuild and retry once.
		if rerr := d.reconstructXRef(); rerr != nil {
			return err
		}
		d.resetCache()
		if err := d.setupEncryption(); err != nil {
			return err
		}
		if err := d.loadCatalog(); err != nil {
			return err
		}
	}

	if len(d.pages) == 0 {
		return ErrNoPages
	}
	return nil
}

// loadCatalog resolves Root, Info and the page tree
func (d *Document) loadCatalog() error {
	root, ok := d.resolveDict(d.Trailer.Get("Root"))
	if !ok {
		return errors.New("pdf: document catalog missing")
	}
	d.Root = root
	d.Info, _ = d.resolveDict(d.Trailer.Get("Info"))
	return d.loadPages()
}

func (d *Document) resetCache() {
	d.mu.Lock()
	d.objects = make(map[int]Object)
	d.objStreams = make(map[int]*objectStream)
	d.mu.Unlock()
}

// loadXRef follows startxref and the /Prev chain
func (d *Document) loadXRef() error {
	offset, err := d.findStartXRef()
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	for !seen[offset] {
		seen[offset] = true
		prev, err := d.parseXRefSection(offset)
		if err != nil {
			return err
		}
		if prev < 0 {
			break
		}
		offset = prev
	}
	return nil
}

// findStartXRef finds the startxref position
func (d *Document) findStartXRef() (int64, error) {
	searchLen := 1024
	if len(d.data) < searchLen {
		searchLen = len(d.data)
	}
	tail := d.data[len(d.data)-searchLen:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}

	lex := NewLexer(tail)
	lex.Seek(int64(idx + len("startxref")))
	tok, err := lex.NextToken()
	if err != nil || tok.Type != TokenInteger {
		return 0, errors.New("invalid startxref offset")
	}
	offset := tok.Value.(int64)
	if offset < 0 || offset >= int64(len(d.data)) {
		return 0, fmt.Errorf("startxref offset %d outside file", offset)
	}
	return offset, nil
}

// parseXRefSection parses a table or stream at offset and returns /Prev, or -1
func (d *Document) parseXRefSection(offset int64) (int64, error) {
	pos := offset
	for pos < int64(len(d.data)) && isWhitespace(d.data[pos]) {
		pos++
	}

	var trailer Dictionary
	var err error
	if bytes.HasPrefix(d.data[pos:], []byte("xref")) {
		trailer, err = d.parseXRefTable(pos)
	} else {
		trailer, err = d.parseXRefStream(pos)
	}
	if err != nil {
		return -1, err
	}

	d.mergeTrailer(trailer)

	// Hybrid files keep extra entries in an XRefStm
	if stm, ok := trailer.GetInt("XRefStm"); ok && stm > 0 && stm < int64(len(d.data)) {
		if _, err := d.parseXRefStream(stm); err != nil {
			return -1, err
		}
	}

	if prev, ok := trailer.GetInt("Prev"); ok && prev >= 0 && prev < int64(len(d.data)) {
		return prev, nil
	}
	return -1, nil
}

// mergeTrailer keeps the newest value of each trailer key
func (d *Document) mergeTrailer(trailer Dictionary) {
	if d.Trailer == nil {
		d.Trailer = make(Dictionary)
	}
	for k, v := range trailer {
		if _, exists := d.Trailer[k]; !exists {
			d.Trailer[k] = v
		}
	}
}

// parseXRefTable parses a traditional xref table and its trailer
func (d *Document) parseXRefTable(offset int64) (Dictionary, error) {
	lexer := NewLexer(d.data)
	lexer.Seek(offset + int64(len("xref")))

	for {
		lexer.skipWhitespace()
		if lexer.atEOF() {
			return nil, errors.New("xref table without trailer")
		}
		if bytes.HasPrefix(d.data[lexer.pos:], []byte("trailer")) {
			lexer.pos += int64(len("trailer"))
			break
		}

		parts := bytes.Fields(lexer.ReadLine())
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed xref subsection header at %d", lexer.pos)
		}
		start, err1 := strconv.Atoi(string(parts[0]))
		count, err2 := strconv.Atoi(string(parts[1]))
		if err1 != nil || err2 != nil || start < 0 || count < 0 {
			return nil, fmt.Errorf("malformed xref subsection header at %d", lexer.pos)
		}

		for i := 0; i < count; i++ {
			lexer.skipWhitespace()
			fields := bytes.Fields(lexer.ReadLine())
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed xref entry for object %d", start+i)
			}
			entryOffset, err := strconv.ParseInt(string(fields[0]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed xref entry for object %d", start+i)
			}
			gen, _ := strconv.Atoi(string(fields[1]))

			objNum := start + i
			if _, exists := d.xref[objNum]; !exists {
				d.xref[objNum] = xrefEntry{
					Offset:     entryOffset,
					Generation: gen,
					InUse:      fields[2][0] == 'n',
				}
			}
		}
	}

	parser := NewParser(lexer)
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, err
	}
	trailer, ok := obj.(Dictionary)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return trailer, nil
}

// parseXRefStream parses an xref stream
func (d *Document) parseXRefStream(offset int64) (Dictionary, error) {
	parser := NewParserFromBytes(d.data)
	parser.Seek(offset)
	_, _, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(Stream)
	if !ok {
		return nil, fmt.Errorf("xref stream expected at offset %d", offset)
	}
	if t, _ := stream.Dictionary.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("object at offset %d is not an xref stream", offset)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	wArray, ok := stream.Dictionary.GetArray("W")
	if !ok || len(wArray) != 3 {
		return nil, errors.New("invalid xref stream W array")
	}
	w := make([]int, 3)
	for i, item := range wArray {
		if n, ok := item.(Integer); ok && n >= 0 && n <= 8 {
			w[i] = int(n)
		}
	}

	var indices []int
	if indexArray, ok := stream.Dictionary.GetArray("Index"); ok {
		for _, item := range indexArray {
			if n, ok := item.(Integer); ok {
				indices = append(indices, int(n))
			}
		}
	} else if size, ok := stream.Dictionary.GetInt("Size"); ok {
		indices = []int{0, int(size)}
	}

	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, errors.New("invalid xref stream W array")
	}
	pos := 0
	for i := 0; i+1 < len(indices); i += 2 {
		start, count := indices[i], indices[i+1]
		for j := 0; j < count && pos+entrySize <= len(data); j++ {
			entry := data[pos : pos+entrySize]
			pos += entrySize

			entryType := readXRefField(entry, 0, w[0])
			if w[0] == 0 {
				entryType = 1
			}
			field2 := readXRefField(entry, w[0], w[1])
			field3 := readXRefField(entry, w[0]+w[1], w[2])

			objNum := start + j
			if _, exists := d.xref[objNum]; exists {
				continue
			}
			switch entryType {
			case 0:
				d.xref[objNum] = xrefEntry{}
			case 1:
				d.xref[objNum] = xrefEntry{Offset: int64(field2), Generation: field3, InUse: true}
			case 2:
				d.xref[objNum] = xrefEntry{StreamObjNum: field2, Index: field3, InUse: true}
			}
		}
	}

	return stream.Dictionary, nil
}

// readXRefField reads a big-endian field from an xref stream entry
func readXRefField(data []byte, offset, width int) int {
	result := 0
	for i := 0; i < width; i++ {
		result = result<<8 | int(data[offset+i])
	}
	return result
}

// reconstructXRef rebuilds the cross-reference table by scanning for
// "N G obj" markers. Later definitions win, as in an incremental update.
func (d *Document) reconstructXRef() error {
	d.Recovered = true
	d.xref = make(map[int]xrefEntry)
	d.Trailer = nil
	d.resetCache()

	marker := []byte("obj")
	for i := 0; ; {
		idx := bytes.Index(d.data[i:], marker)
		if idx < 0 {
			break
		}
		at := i + idx
		i = at + len(marker)
		if i < len(d.data) && !isWhitespace(d.data[i]) && !isDelimiter(d.data[i]) {
			continue
		}
		if num, gen, start, ok := scanObjectHeader(d.data, at); ok {
			d.xref[num] = xrefEntry{Offset: int64(start), Generation: gen, InUse: true}
		}
	}
	if len(d.xref) == 0 {
		return errors.New("no objects found")
	}

	// Trailers that survived, newest last
	for i := 0; ; {
		idx := bytes.Index(d.data[i:], []byte("trailer"))
		if idx < 0 {
			break
		}
		i += idx + len("trailer")
		parser := NewParserFromBytes(d.data)
		parser.Seek(int64(i))
		if obj, err := parser.ParseObject(); err == nil {
			if dict, ok := obj.(Dictionary); ok {
				for k, v := range dict {
					if k != "Prev" && k != "XRefStm" {
						if d.Trailer == nil {
							d.Trailer = make(Dictionary)
						}
						d.Trailer[k] = v
					}
				}
			}
		}
	}

	// Object streams and xref stream dictionaries
	for num, entry := range d.xref {
		obj, err := d.parseAt(entry.Offset, num, false)
		if err != nil {
			continue
		}
		stream, ok := obj.(Stream)
		if !ok {
			if dict, ok := obj.(Dictionary); ok && d.Trailer.Get("Root") == nil {
				if t, _ := dict.GetName("Type"); t == "Catalog" {
					d.mergeTrailer(Dictionary{"Root": Reference{ObjectNumber: num, GenerationNumber: entry.Generation}})
				}
			}
			continue
		}
		switch t, _ := stream.Dictionary.GetName("Type"); t {
		case "XRef":
			for _, key := range []string{"Root", "Info", "ID", "Encrypt"} {
				if v := stream.Dictionary.Get(key); v != nil && d.Trailer.Get(key) == nil {
					d.mergeTrailer(Dictionary{Name(key): v})
				}
			}
		case "ObjStm":
			d.indexObjectStream(num, stream)
		}
	}

	if d.Trailer.Get("Root") == nil {
		return errors.New("document catalog not found")
	}
	return nil
}

// indexObjectStream registers the members of an object stream found during recovery
func (d *Document) indexObjectStream(num int, stream Stream) {
	data, err := stream.Decode()
	if err != nil {
		return
	}
	first, _ := stream.Dictionary.GetInt("First")
	n, _ := stream.Dictionary.GetInt("N")
	if first <= 0 || first > int64(len(data)) {
		return
	}
	parser := NewParserFromBytes(data[:first])
	for i := 0; i < int(n); i++ {
		numObj, err1 := parser.ParseObject()
		_, err2 := parser.ParseObject()
		if err1 != nil || err2 != nil {
			return
		}
		member, ok := numObj.(Integer)
		if !ok {
			return
		}
		if _, exists := d.xref[int(member)]; !exists {
			d.xref[int(member)] = xrefEntry{StreamObjNum: num, Index: i, InUse: true}
		}
	}
	if d.Trailer.Get("Root") == nil {
		if dict, ok := findCatalogInStream(data, first); ok {
			d.mergeTrailer(dict)
		}
	}
}

// findCatalogInStream looks for a catalog inside a decoded object stream
func findCatalogInStream(data []byte, first int64) (Dictionary, bool) {
	header := NewParserFromBytes(data[:first])
	body := NewParserFromBytes(data)
	for {
		numObj, err := header.ParseObject()
		if err != nil {
			return nil, false
		}
		offObj, err := header.ParseObject()
		if err != nil {
			return nil, false
		}
		member, ok1 := numObj.(Integer)
		off, ok2 := offObj.(Integer)
		if !ok1 || !ok2 {
			return nil, false
		}
		body.Seek(first + int64(off))
		obj, err := body.ParseObject()
		if err != nil {
			continue
		}
		if dict, ok := obj.(Dictionary); ok {
			if t, _ := dict.GetName("Type"); t == "Catalog" {
				return Dictionary{"Root": Reference{ObjectNumber: int(member)}}, true
			}
		}
	}
}

// scanObjectHeader walks backwards from an "obj" keyword at pos over
// "<num> <gen> " and returns the offset where the header starts.
func scanObjectHeader(data []byte, pos int) (num, gen, start int, ok bool) {
	i := pos - 1
	skipSpace := func() bool {
		n := 0
		for i >= 0 && isWhitespace(data[i]) {
			i--
			n++
		}
		return n > 0
	}
	readDigits := func() (int, bool) {
		end := i + 1
		for i >= 0 && data[i] >= '0' && data[i] <= '9' {
			i--
		}
		if i+1 == end {
			return 0, false
		}
		v, err := strconv.Atoi(string(data[i+1 : end]))
		return v, err == nil
	}

	if !skipSpace() {
		return 0, 0, 0, false
	}
	if gen, ok = readDigits(); !ok {
		return 0, 0, 0, false
	}
	if !skipSpace() {
		return 0, 0, 0, false
	}
	if num, ok = readDigits(); !ok {
		return 0, 0, 0, false
	}
	if i >= 0 && !isWhitespace(data[i]) && !isDelimiter(data[i]) {
		return 0, 0, 0, false
	}
	return num, gen, i + 1, true
}

// setupEncryption installs the standard security handler when /Encrypt is
// present. Only documents that open with the empty user password are
// accepted.
func (d *Document) setupEncryption() error {
	enc := d.Trailer.Get("Encrypt")
	if enc == nil {
		return nil
	}
	if ref, ok := enc.(Reference); ok {
		d.encryptNum = ref.ObjectNumber
	}
	dict, ok := d.resolveDict(enc)
	if !ok {
		return fmt.Errorf("%w: Encrypt dictionary unreadable", ErrEncrypted)
	}

	var id []byte
	if ids, ok := d.Trailer.Get("ID").(Array); ok && len(ids) > 0 {
		if s, ok := ids[0].(String); ok {
			id = s.Value
		}
	}

	sh, err := newSecurityHandler(dict, id)
	if err != nil {
		return err
	}
	if !sh.AuthenticateUser("") {
		return fmt.Errorf("%w: password required", ErrEncrypted)
	}
	d.security = sh
	d.resetCache()
	return nil
}

// Encrypted reports whether the document uses a security handler
func (d *Document) Encrypted() bool {
	return d.security != nil
}

// ResolveObject resolves an object, following references
func (d *Document) ResolveObject(obj Object) (Object, error) {
	for depth := 0; depth < maxResolveDepth; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		var err error
		obj, err = d.GetObject(ref.ObjectNumber)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.New("reference chain too deep")
}

func (d *Document) resolveDict(obj Object) (Dictionary, bool) {
	if obj == nil {
		return nil, false
	}
	resolved, err := d.ResolveObject(obj)
	if err != nil {
		return nil, false
	}
	switch v := resolved.(type) {
	case Dictionary:
		return v, true
	case Stream:
		return v.Dictionary, true
	}
	return nil, false
}

func (d *Document) resolveArray(obj Object) (Array, bool) {
	if obj == nil {
		return nil, false
	}
	resolved, err := d.ResolveObject(obj)
	if err != nil {
		return nil, false
	}
	a, ok := resolved.(Array)
	return a, ok
}

// GetObject gets an object by number. Missing and free objects are Null.
func (d *Document) GetObject(objNum int) (Object, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	if obj, ok := d.objects[objNum]; ok {
		d.mu.Unlock()
		return obj, nil
	}
	entry, ok := d.xref[objNum]
	d.mu.Unlock()

	if !ok || !entry.InUse {
		return Null{}, nil
	}

	var obj Object
	var err error
	if entry.StreamObjNum > 0 {
		obj, err = d.getCompressedObject(entry.StreamObjNum, entry.Index)
	} else {
		obj, err = d.parseAt(entry.Offset, objNum, true)
		if err == nil && d.security != nil && objNum != d.encryptNum {
			obj = d.security.decryptObject(obj, objNum, entry.Generation)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}

	d.mu.Lock()
	if d.objects != nil {
		d.objects[objNum] = obj
	}
	d.mu.Unlock()
	return obj, nil
}

// parseAt parses the indirect object at offset, which must be object num
func (d *Document) parseAt(offset int64, num int, resolveLength bool) (Object, error) {
	if offset <= 0 || offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("offset %d outside file", offset)
	}
	parser := NewParserFromBytes(d.data)
	if resolveLength {
		parser.SetLengthResolver(d.streamLength)
	}
	parser.Seek(offset)
	found, _, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if found != num {
		return nil, fmt.Errorf("offset %d holds object %d", offset, found)
	}
	return obj, nil
}

// streamLength resolves an indirect /Length without recursing into streams
func (d *Document) streamLength(ref Reference) (int64, bool) {
	d.mu.Lock()
	entry, ok := d.xref[ref.ObjectNumber]
	d.mu.Unlock()
	if !ok || !entry.InUse {
		return 0, false
	}

	var obj Object
	var err error
	if entry.StreamObjNum > 0 {
		obj, err = d.getCompressedObject(entry.StreamObjNum, entry.Index)
	} else {
		obj, err = d.parseAt(entry.Offset, ref.ObjectNumber, false)
	}
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Integer)
	return int64(n), ok && n >= 0
}

// getCompressedObject reads a compressed object from an object stream
func (d *Document) getCompressedObject(streamObjNum, index int) (Object, error) {
	d.mu.Lock()
	ostm, ok := d.objStreams[streamObjNum]
	d.mu.Unlock()

	if !ok {
		streamObj, err := d.GetObject(streamObjNum)
		if err != nil {
			return nil, err
		}
		stream, ok := streamObj.(Stream)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", streamObjNum)
		}
		ostm, err = loadObjectStream(stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamObjNum, err)
		}
		d.mu.Lock()
		if d.objStreams != nil {
			d.objStreams[streamObjNum] = ostm
		}
		d.mu.Unlock()
	}

	if index < 0 || index >= len(ostm.offsets) {
		return nil, fmt.Errorf("object index %d out of range", index)
	}
	parser := NewParserFromBytes(ostm.data)
	parser.Seek(ostm.first + ostm.offsets[index])
	return parser.ParseObject()
}

func loadObjectStream(stream Stream) (*objectStream, error) {
	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}
	first, ok := stream.Dictionary.GetInt("First")
	if !ok || first < 0 || first > int64(len(data)) {
		return nil, errors.New("missing or invalid First")
	}
	n, ok := stream.Dictionary.GetInt("N")
	if !ok || n < 0 {
		return nil, errors.New("missing N")
	}

	header := NewParserFromBytes(data[:first])
	offsets := make([]int64, 0, n)
	for i := int64(0); i < n; i++ {
		if _, err := header.ParseObject(); err != nil {
			break
		}
		offObj, err := header.ParseObject()
		if err != nil {
			break
		}
		off, _ := offObj.(Integer)
		offsets = append(offsets, int64(off))
	}
	return &objectStream{data: data, first: first, offsets: offsets}, nil
}

// NumPages returns the number of pages
func (d *Document) NumPages() int {
	return len(d.pages)
}

// Page returns a page by number (1-indexed)
func (d *Document) Page(num int) (*Page, error) {
	if num < 1 || num > len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, num, len(d.pages))
	}
	return d.pages[num-1], nil
}

// Close releases the document's buffers. Later object lookups fail with ErrClosed.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.objects = nil
	d.objStreams = nil
	return nil
}

// DocumentInfo contains PDF document metadata
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate time.Time
	ModDate      time.Time
	PDFVersion   string
	Pages        int
	Encrypted    bool
	Recovered    bool
}

// GetInfo returns document metadata
func (d *Document) GetInfo() DocumentInfo {
	info := DocumentInfo{
		PDFVersion: d.Version,
		Pages:      len(d.pages),
		Encrypted:  d.security != nil,
		Recovered:  d.Recovered,
	}
	text := func(key string) string {
		obj, err := d.ResolveObject(d.Info.Get(key))
		if err != nil {
			return ""
		}
		if s, ok := obj.(String); ok {
			return s.Text()
		}
		return ""
	}
	if d.Info != nil {
		info.Title = text("Title")
		info.Author = text("Author")
		info.Subject = text("Subject")
		info.Keywords = text("Keywords")
		info.Creator = text("Creator")
		info.Producer = text("Producer")
		info.CreationDate = parsePDFDate(text("CreationDate"))
		info.ModDate = parsePDFDate(text("ModDate"))
	}
	return info
}

// parsePDFDate parses a PDF date string (D:YYYYMMDDHHmmSSOHH'mm')
func parsePDFDate(s string) time.Time {
	if len(s) >= 2 && s[:2] == "D:" {
		s = s[2:]
	}
	if len(s) < 4 {
		return time.Time{}
	}

	field := func(from, to, def int) int {
		if len(s) < to {
			return def
		}
		v, err := strconv.Atoi(s[from:to])
		if err != nil {
			return def
		}
		return v
	}
	year := field(0, 4, 0)
	month := field(4, 6, 1)
	day := field(6, 8, 1)
	hour := field(8, 10, 0)
	minute := field(10, 12, 0)
	sec := field(12, 14, 0)

	offset := 0
	if len(s) >= 15 && (s[14] == '+' || s[14] == '-') {
		offset = field(15, 17, 0)*3600 + field(18, 20, 0)*60
		if s[14] == '-' {
			offset = -offset
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.FixedZone("", offset))
}
