package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNull
	TokenBoolean
	TokenInteger
	TokenReal
	TokenString
	TokenHexString
	TokenName
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenStreamStart
	TokenStreamEnd
	TokenObjStart
	TokenObjEnd
	TokenRef
	TokenXRef
	TokenTrailer
	TokenStartXRef
	TokenKeyword
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int64
}

// Lexer performs lexical analysis on an in-memory PDF buffer
type Lexer struct {
	data []byte
	pos  int64
}

// NewLexer creates a new lexer over data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Position returns the current offset
func (l *Lexer) Position() int64 {
	return l.pos
}

// Seek moves the lexer to an absolute offset
func (l *Lexer) Seek(pos int64) {
	if pos < 0 {
		pos = 0
	}
	if pos > int64(len(l.data)) {
		pos = int64(len(l.data))
	}
	l.pos = pos
}

func (l *Lexer) atEOF() bool {
	return l.pos >= int64(len(l.data))
}

func (l *Lexer) peek() (byte, bool) {
	if l.atEOF() {
		return 0, false
	}
	return l.data[l.pos], true
}

func (l *Lexer) next() (byte, bool) {
	if l.atEOF() {
		return 0, false
	}
	b := l.data[l.pos]
	l.pos++
	return b, true
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() {
		b := l.data[l.pos]
		switch {
		case isWhitespace(b):
			l.pos++
		case b == '%':
			for !l.atEOF() && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// isWhitespace checks if a byte is PDF whitespace
func isWhitespace(b byte) bool {
	return b == 0 || b == '\t' || b == '\n' || b == '\f' || b == '\r' || b == ' '
}

// isDelimiter checks if a byte is a PDF delimiter
func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	pos := l.pos
	b, ok := l.next()
	if !ok {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	switch b {
	case '[':
		return Token{Type: TokenArrayStart, Pos: pos}, nil
	case ']':
		return Token{Type: TokenArrayEnd, Pos: pos}, nil
	case '(':
		return l.readLiteralString(pos)
	case '<':
		if c, ok := l.peek(); ok && c == '<' {
			l.pos++
			return Token{Type: TokenDictStart, Pos: pos}, nil
		}
		return l.readHexString(pos)
	case '>':
		if c, ok := l.peek(); ok && c == '>' {
			l.pos++
			return Token{Type: TokenDictEnd, Pos: pos}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at position %d", pos)
	case '/':
		return l.readName(pos)
	case '{', '}':
		// PostScript calculator braces; surface them as keywords.
		return Token{Type: TokenKeyword, Value: string(b), Pos: pos}, nil
	case ')':
		return Token{}, fmt.Errorf("unbalanced ')' at position %d", pos)
	}

	if b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9') {
		l.pos--
		return l.readNumber(pos)
	}
	l.pos--
	return l.readKeyword(pos)
}

// readLiteralString reads a literal string (...)
func (l *Lexer) readLiteralString(pos int64) (Token, error) {
	var buf bytes.Buffer
	depth := 1

	for depth > 0 {
		b, ok := l.next()
		if !ok {
			return Token{}, fmt.Errorf("unterminated string at position %d", pos)
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			buf.Write(l.readEscapeSequence())
		case '\r':
			// EOL inside a string is always a single LF
			if c, ok := l.peek(); ok && c == '\n' {
				l.pos++
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(b)
		}
	}

	return Token{Type: TokenString, Value: buf.Bytes(), Pos: pos}, nil
}

// readEscapeSequence reads an escape sequence in a literal string
func (l *Lexer) readEscapeSequence() []byte {
	b, ok := l.next()
	if !ok {
		return nil
	}

	switch b {
	case 'n':
		return []byte{'\n'}
	case 'r':
		return []byte{'\r'}
	case 't':
		return []byte{'\t'}
	case 'b':
		return []byte{'\b'}
	case 'f':
		return []byte{'\f'}
	case '(', ')', '\\':
		return []byte{b}
	case '\r':
		if c, ok := l.peek(); ok && c == '\n' {
			l.pos++
		}
		return nil
	case '\n':
		return nil
	}

	if b >= '0' && b <= '7' {
		val := int(b - '0')
		for i := 0; i < 2; i++ {
			c, ok := l.peek()
			if !ok || c < '0' || c > '7' {
				break
			}
			l.pos++
			val = val*8 + int(c-'0')
		}
		return []byte{byte(val)}
	}
	return []byte{b}
}

// readHexString reads a hexadecimal string <...>
func (l *Lexer) readHexString(pos int64) (Token, error) {
	start := l.pos
	end := bytes.IndexByte(l.data[start:], '>')
	if end < 0 {
		return Token{}, fmt.Errorf("unterminated hex string at position %d", pos)
	}
	l.pos = start + int64(end) + 1

	decoded, err := asciiHexDecode(l.data[start : start+int64(end)])
	if err != nil {
		return Token{}, fmt.Errorf("invalid hex string at position %d: %w", pos, err)
	}
	return Token{Type: TokenHexString, Value: decoded, Pos: pos}, nil
}

// readName reads a name object /...
func (l *Lexer) readName(pos int64) (Token, error) {
	var buf bytes.Buffer

	for {
		b, ok := l.peek()
		if !ok || isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++

		if b == '#' && l.pos+2 <= int64(len(l.data)) {
			hi, ok1 := hexValue(l.data[l.pos])
			lo, ok2 := hexValue(l.data[l.pos+1])
			if ok1 && ok2 {
				buf.WriteByte(hi<<4 | lo)
				l.pos += 2
				continue
			}
		}
		buf.WriteByte(b)
	}

	return Token{Type: TokenName, Value: buf.String(), Pos: pos}, nil
}

// readNumber reads a number (integer or real)
func (l *Lexer) readNumber(pos int64) (Token, error) {
	start := l.pos
	hasDecimal := false
	hasDigit := false

	for {
		b, ok := l.peek()
		if !ok {
			break
		}
		if b == '+' || b == '-' {
			if l.pos > start {
				break
			}
		} else if b == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
		} else if b >= '0' && b <= '9' {
			hasDigit = true
		} else {
			break
		}
		l.pos++
	}

	str := string(l.data[start:l.pos])
	if !hasDigit {
		// A lone sign or dot is treated as zero, like most viewers do.
		return Token{Type: TokenInteger, Value: int64(0), Pos: pos}, nil
	}

	if hasDecimal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Token{}, fmt.Errorf("invalid real number at position %d", pos)
		}
		return Token{Type: TokenReal, Value: val, Pos: pos}, nil
	}

	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(str, 64)
		if ferr != nil {
			return Token{}, fmt.Errorf("invalid integer at position %d", pos)
		}
		return Token{Type: TokenReal, Value: f, Pos: pos}, nil
	}
	return Token{Type: TokenInteger, Value: val, Pos: pos}, nil
}

// readKeyword reads a bare keyword. Structural keywords get their own token
// type; everything else (content stream operators) is a TokenKeyword.
func (l *Lexer) readKeyword(pos int64) (Token, error) {
	start := l.pos
	for {
		b, ok := l.peek()
		if !ok || isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++
	}
	if l.pos == start {
		// Stray delimiter byte; consume it so the caller makes progress.
		l.pos++
		return Token{}, fmt.Errorf("unexpected character %q at position %d", l.data[start], pos)
	}

	keyword := string(l.data[start:l.pos])
	switch keyword {
	case "true":
		return Token{Type: TokenBoolean, Value: true, Pos: pos}, nil
	case "false":
		return Token{Type: TokenBoolean, Value: false, Pos: pos}, nil
	case "null":
		return Token{Type: TokenNull, Pos: pos}, nil
	case "obj":
		return Token{Type: TokenObjStart, Pos: pos}, nil
	case "endobj":
		return Token{Type: TokenObjEnd, Pos: pos}, nil
	case "stream":
		return Token{Type: TokenStreamStart, Pos: pos}, nil
	case "endstream":
		return Token{Type: TokenStreamEnd, Pos: pos}, nil
	case "R":
		return Token{Type: TokenRef, Pos: pos}, nil
	case "xref":
		return Token{Type: TokenXRef, Pos: pos}, nil
	case "trailer":
		return Token{Type: TokenTrailer, Pos: pos}, nil
	case "startxref":
		return Token{Type: TokenStartXRef, Pos: pos}, nil
	}
	return Token{Type: TokenKeyword, Value: keyword, Pos: pos}, nil
}

// ReadLine reads until end of line
func (l *Lexer) ReadLine() []byte {
	start := l.pos
	for !l.atEOF() {
		b := l.data[l.pos]
		if b == '\r' || b == '\n' {
			line := l.data[start:l.pos]
			l.pos++
			if b == '\r' && !l.atEOF() && l.data[l.pos] == '\n' {
				l.pos++
			}
			return line
		}
		l.pos++
	}
	return l.data[start:l.pos]
}

// ReadBytes reads up to n bytes
func (l *Lexer) ReadBytes(n int) []byte {
	end := l.pos + int64(n)
	if end > int64(len(l.data)) {
		end = int64(len(l.data))
	}
	out := l.data[l.pos:end]
	l.pos = end
	return out
}

// skipStreamEOL skips the single EOL that follows the stream keyword
func (l *Lexer) skipStreamEOL() {
	for !l.atEOF() && (l.data[l.pos] == ' ' || l.data[l.pos] == '\t') {
		l.pos++
	}
	if !l.atEOF() && l.data[l.pos] == '\r' {
		l.pos++
	}
	if !l.atEOF() && l.data[l.pos] == '\n' {
		l.pos++
	}
}
