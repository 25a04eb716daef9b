package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// LengthResolver resolves an indirect /Length value while a stream is being read
type LengthResolver func(ref Reference) (int64, bool)

// Parser parses PDF objects from tokens
type Parser struct {
	lexer     *Lexer
	lookahead []Token
	resolve   LengthResolver
}

// NewParser creates a new parser for the given lexer
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// NewParserFromBytes creates a new parser from byte slice
func NewParserFromBytes(data []byte) *Parser {
	return NewParser(NewLexer(data))
}

// SetLengthResolver installs the callback used for indirect stream lengths
func (p *Parser) SetLengthResolver(r LengthResolver) {
	p.resolve = r
}

// Seek repositions the parser, discarding any buffered lookahead
func (p *Parser) Seek(pos int64) {
	p.lookahead = p.lookahead[:0]
	p.lexer.Seek(pos)
}

// nextToken gets the next token, draining lookahead first
func (p *Parser) nextToken() (Token, error) {
	if len(p.lookahead) > 0 {
		tok := p.lookahead[0]
		p.lookahead = p.lookahead[1:]
		return tok, nil
	}
	return p.lexer.NextToken()
}

// peekTokenN peeks at the nth token ahead (0-indexed)
func (p *Parser) peekTokenN(n int) (Token, error) {
	for len(p.lookahead) <= n {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		p.lookahead = append(p.lookahead, tok)
	}
	return p.lookahead[n], nil
}

func (p *Parser) peekToken() (Token, error) {
	return p.peekTokenN(0)
}

// ParseObject parses a single PDF object
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	return p.objectFrom(tok)
}

func (p *Parser) objectFrom(tok Token) (Object, error) {
	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF
	case TokenNull:
		return Null{}, nil
	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil
	case TokenInteger:
		// num gen R
		next1, err := p.peekToken()
		if err == nil && next1.Type == TokenInteger {
			next2, err := p.peekTokenN(1)
			if err == nil && next2.Type == TokenRef {
				p.nextToken()
				p.nextToken()
				return Reference{
					ObjectNumber:     int(tok.Value.(int64)),
					GenerationNumber: int(next1.Value.(int64)),
				}, nil
			}
		}
		return Integer(tok.Value.(int64)), nil
	case TokenReal:
		return Real(tok.Value.(float64)), nil
	case TokenString:
		return String{Value: tok.Value.([]byte)}, nil
	case TokenHexString:
		return String{Value: tok.Value.([]byte), IsHex: true}, nil
	case TokenName:
		return Name(tok.Value.(string)), nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDictionary()
	}
	return nil, fmt.Errorf("unexpected token type %d at position %d", tok.Type, tok.Pos)
}

// parseArray parses a PDF array [...]
func (p *Parser) parseArray() (Array, error) {
	arr := Array{}
	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayEnd:
			p.nextToken()
			return arr, nil
		case TokenEOF:
			return nil, fmt.Errorf("unterminated array at position %d", tok.Pos)
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDictionary parses a PDF dictionary <<...>>
func (p *Parser) parseDictionary() (Dictionary, error) {
	dict := make(Dictionary)
	for {
		keyTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch keyTok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenEOF:
			return nil, fmt.Errorf("unterminated dictionary at position %d", keyTok.Pos)
		case TokenName:
		default:
			return nil, fmt.Errorf("expected name as dictionary key at position %d", keyTok.Pos)
		}

		// A key directly followed by >> has a null value
		if tok, err := p.peekToken(); err == nil && tok.Type == TokenDictEnd {
			continue
		}
		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		if _, isNull := value.(Null); !isNull {
			dict[Name(keyTok.Value.(string))] = value
		}
	}
}

// ParseIndirectObject parses an indirect object definition (num gen obj ... endobj)
func (p *Parser) ParseIndirectObject() (int, int, Object, error) {
	numTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if numTok.Type != TokenInteger {
		return 0, 0, nil, fmt.Errorf("expected object number at position %d", numTok.Pos)
	}
	genTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if genTok.Type != TokenInteger {
		return 0, 0, nil, fmt.Errorf("expected generation number at position %d", genTok.Pos)
	}
	objTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if objTok.Type != TokenObjStart {
		return 0, 0, nil, fmt.Errorf("expected 'obj' keyword at position %d", objTok.Pos)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return 0, 0, nil, err
	}

	nextTok, err := p.peekToken()
	if err == nil && nextTok.Type == TokenStreamStart {
		dict, ok := obj.(Dictionary)
		if !ok {
			return 0, 0, nil, fmt.Errorf("stream must have dictionary at position %d", nextTok.Pos)
		}
		p.nextToken()
		data, err := p.readStreamData(dict)
		if err != nil {
			return 0, 0, nil, err
		}
		obj = Stream{Dictionary: dict, Data: data}
	}

	// endobj is frequently missing in damaged files; tolerate it.
	if tok, err := p.peekToken(); err == nil && tok.Type == TokenObjEnd {
		p.nextToken()
	}

	return int(numTok.Value.(int64)), int(genTok.Value.(int64)), obj, nil
}

// readStreamData reads the raw bytes of a stream whose keyword was just
// consumed. The lookahead is empty at this point.
func (p *Parser) readStreamData(dict Dictionary) ([]byte, error) {
	p.lexer.skipStreamEOL()
	start := p.lexer.Position()

	length := int64(-1)
	switch l := dict.Get("Length").(type) {
	case Integer:
		length = int64(l)
	case Reference:
		if p.resolve != nil {
			if n, ok := p.resolve(l); ok {
				length = n
			}
		}
	}

	if length >= 0 && start+length <= int64(len(p.lexer.data)) {
		data := p.lexer.ReadBytes(int(length))
		p.lexer.skipWhitespace()
		if bytes.HasPrefix(p.lexer.data[p.lexer.pos:], []byte("endstream")) {
			p.lexer.pos += int64(len("endstream"))
			return data, nil
		}
		p.lexer.Seek(start)
	}
	return p.readStreamUntilEnd(start)
}

// readStreamUntilEnd scans forward for endstream when /Length is unusable
func (p *Parser) readStreamUntilEnd(start int64) ([]byte, error) {
	rest := p.lexer.data[start:]
	idx := bytes.Index(rest, []byte("endstream"))
	if idx < 0 {
		return nil, errors.New("stream without endstream")
	}
	data := rest[:idx]
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	if n := len(data); n > 0 && data[n-1] == '\r' {
		data = data[:n-1]
	}
	p.lexer.Seek(start + int64(idx) + int64(len("endstream")))
	return data, nil
}

// Operation represents a content stream operation
type Operation struct {
	Operator string
	Operands []Object
}

// ContentStreamParser parses content streams into operations
type ContentStreamParser struct {
	parser *Parser
}

// NewContentStreamParser creates a new content stream parser
func NewContentStreamParser(data []byte) *ContentStreamParser {
	return &ContentStreamParser{parser: NewParserFromBytes(data)}
}

// ParseOperations parses all operations from a content stream. Malformed
// operands are skipped so a single bad token does not lose the page.
func (c *ContentStreamParser) ParseOperations() ([]Operation, error) {
	p := c.parser
	var ops []Operation
	var operands []Object

	for {
		tok, err := p.peekToken()
		if err != nil {
			p.lookahead = p.lookahead[:0]
			continue
		}

		switch tok.Type {
		case TokenEOF:
			return ops, nil
		case TokenKeyword:
			p.nextToken()
			name := tok.Value.(string)
			if name == "BI" {
				img, err := c.parseInlineImage()
				if err != nil {
					return ops, err
				}
				ops = append(ops, img)
				operands = nil
				continue
			}
			ops = append(ops, Operation{Operator: name, Operands: operands})
			operands = nil
			continue
		case TokenObjStart, TokenObjEnd, TokenStreamStart, TokenStreamEnd,
			TokenRef, TokenXRef, TokenTrailer, TokenStartXRef, TokenArrayEnd, TokenDictEnd:
			p.nextToken()
			operands = nil
			continue
		}

		obj, err := p.ParseObject()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ops, nil
			}
			operands = nil
			continue
		}
		operands = append(operands, obj)
	}
}

// parseInlineImage reads BI <dict> ID <data> EI. The operation carries the
// image dictionary and the raw data as a String.
func (c *ContentStreamParser) parseInlineImage() (Operation, error) {
	p := c.parser
	dict := make(Dictionary)
	for {
		tok, err := p.nextToken()
		if err != nil {
			return Operation{}, err
		}
		if tok.Type == TokenKeyword && tok.Value.(string) == "ID" {
			break
		}
		if tok.Type == TokenEOF {
			return Operation{}, errors.New("unterminated inline image")
		}
		if tok.Type != TokenName {
			continue
		}
		value, err := p.ParseObject()
		if err != nil {
			return Operation{}, err
		}
		dict[Name(tok.Value.(string))] = value
	}

	lex := p.lexer
	start := lex.Position() + 1
	data := lex.data
	end := -1
	for i := int(start); i+1 < len(data); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		if i > 0 && !isWhitespace(data[i-1]) {
			continue
		}
		if i+2 < len(data) && !isWhitespace(data[i+2]) && !isDelimiter(data[i+2]) {
			continue
		}
		end = i
		break
	}
	if end < 0 {
		return Operation{}, errors.New("inline image without EI")
	}

	raw := data[min(int(start), end):end]
	if n := len(raw); n > 0 && isWhitespace(raw[n-1]) {
		raw = raw[:n-1]
	}
	lex.Seek(int64(end + 2))

	return Operation{
		Operator: "BI",
		Operands: []Object{dict, String{Value: raw}},
	}, nil
}
