package pdf

import (
	"testing"
)

// TestLexerReadLine tests reading lines from lexer
func TestLexerReadLine(t *testing.T) {
	lexer := NewLexer([]byte("line1\nline2\rline3\r\nline4"))

	for _, want := range []string{"line1", "line2", "line3", "line4"} {
		if line := lexer.ReadLine(); string(line) != want {
			t.Errorf("Expected %q, got %q", want, line)
		}
	}
}

// TestIsWhitespace tests whitespace detection
func TestIsWhitespace(t *testing.T) {
	for _, ws := range []byte{' ', '\t', '\n', '\r', '\f', 0} {
		if !isWhitespace(ws) {
			t.Errorf("Expected %d to be whitespace", ws)
		}
	}
	for _, nws := range []byte{'a', '1', '/', '('} {
		if isWhitespace(nws) {
			t.Errorf("Expected %c to not be whitespace", nws)
		}
	}
}

// TestIsDelimiter tests delimiter detection
func TestIsDelimiter(t *testing.T) {
	for _, d := range []byte{'(', ')', '<', '>', '[', ']', '{', '}', '/', '%'} {
		if !isDelimiter(d) {
			t.Errorf("Expected %c to be delimiter", d)
		}
	}
	for _, nd := range []byte{'a', '1', '.', '-'} {
		if isDelimiter(nd) {
			t.Errorf("Expected %c to not be delimiter", nd)
		}
	}
}

// TestParserParseNumbers tests parsing integers and reals
func TestParserParseNumbers(t *testing.T) {
	tests := []struct {
		input    string
		expected Object
	}{
		{"0", Integer(0)},
		{"42", Integer(42)},
		{"-17", Integer(-17)},
		{"+5", Integer(5)},
		{"3.14", Real(3.14)},
		{"-.5", Real(-0.5)},
		{"4.", Real(4)},
		{"-", Integer(0)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
			if err != nil {
				t.Fatalf("ParseObject failed: %v", err)
			}
			if obj != tt.expected {
				t.Errorf("Expected %v (%T), got %v (%T)", tt.expected, tt.expected, obj, obj)
			}
		})
	}
}

// TestParserParseString tests literal and hex strings
func TestParserParseString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(Hello)", "Hello"},
		{"(a (nested) b)", "a (nested) b"},
		{`(esc\n\(\)\\)`, "esc\n()\\"},
		{`(\101\102)`, "AB"},
		{"(line\\\ncontinued)", "linecontinued"},
		{"(cr\r\nlf)", "cr\nlf"},
		{"<48656C6C6F>", "Hello"},
		{"<4 8 6>", "H`"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
			if err != nil {
				t.Fatalf("ParseObject failed: %v", err)
			}
			s, ok := obj.(String)
			if !ok {
				t.Fatalf("Expected String, got %T", obj)
			}
			if string(s.Value) != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, s.Value)
			}
		})
	}
}

// TestParserParseName tests names with #xx escapes
func TestParserParseName(t *testing.T) {
	tests := []struct {
		input    string
		expected Name
	}{
		{"/Type", "Type"},
		{"/A#20B", "A B"},
		{"/", ""},
	}

	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("%s: ParseObject failed: %v", tt.input, err)
		}
		if obj != tt.expected {
			t.Errorf("%s: expected %q, got %v", tt.input, tt.expected, obj)
		}
	}
}

// TestParserParseDictionary tests nested dictionaries, arrays and references
func TestParserParseDictionary(t *testing.T) {
	input := "<< /Type /Page /Kids [1 0 R 2 0 R] /Box [0 0 612.5 792] /Sub << /A true /N null >> /Count 3 >>"
	obj, err := NewParserFromBytes([]byte(input)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	dict, ok := obj.(Dictionary)
	if !ok {
		t.Fatalf("Expected Dictionary, got %T", obj)
	}

	if name, _ := dict.GetName("Type"); name != "Page" {
		t.Errorf("Expected Type Page, got %q", name)
	}
	kids, _ := dict.GetArray("Kids")
	if len(kids) != 2 || kids[1] != (Reference{ObjectNumber: 2}) {
		t.Errorf("Unexpected Kids %v", kids)
	}
	box, _ := dict.GetArray("Box")
	if len(box) != 4 || box[2] != Real(612.5) {
		t.Errorf("Unexpected Box %v", box)
	}
	sub, ok := dict.GetDict("Sub")
	if !ok || sub.Get("A") != Boolean(true) {
		t.Errorf("Unexpected Sub %v", sub)
	}
	if _, present := sub[Name("N")]; present {
		t.Error("Null dictionary values should be dropped")
	}
	if n, _ := dict.GetInt("Count"); n != 3 {
		t.Errorf("Expected Count 3, got %d", n)
	}
}

// TestParseIndirectObject tests object headers and stream bodies
func TestParseIndirectObject(t *testing.T) {
	input := "7 0 obj\n<< /Length 5 >>\nstream\r\nHello\nendstream\nendobj"
	num, gen, obj, err := NewParserFromBytes([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if num != 7 || gen != 0 {
		t.Errorf("Expected 7 0, got %d %d", num, gen)
	}
	stream, ok := obj.(Stream)
	if !ok {
		t.Fatalf("Expected Stream, got %T", obj)
	}
	if string(stream.Data) != "Hello" {
		t.Errorf("Expected stream data 'Hello', got %q", stream.Data)
	}
}

// TestParseIndirectObjectBadLength tests recovery from a wrong /Length
func TestParseIndirectObjectBadLength(t *testing.T) {
	input := "3 0 obj\n<< /Length 99 >>\nstream\nabc\nendstream\nendobj"
	_, _, obj, err := NewParserFromBytes([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	stream := obj.(Stream)
	if string(stream.Data) != "abc" {
		t.Errorf("Expected 'abc', got %q", stream.Data)
	}
}

// TestContentStreamParser tests operator and operand grouping
func TestContentStreamParser(t *testing.T) {
	content := "q 1 0 0 1 10 20 cm BT /F1 12 Tf (Hi) Tj [(A) -250 (B)] TJ ET 0.5 g 0 0 10 10 re f Q"
	ops, err := NewContentStreamParser([]byte(content)).ParseOperations()
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}

	want := []struct {
		op    string
		nargs int
	}{
		{"q", 0}, {"cm", 6}, {"BT", 0}, {"Tf", 2}, {"Tj", 1}, {"TJ", 1},
		{"ET", 0}, {"g", 1}, {"re", 4}, {"f", 0}, {"Q", 0},
	}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d operations, got %d: %v", len(want), len(ops), ops)
	}
	for i, w := range want {
		if ops[i].Operator != w.op || len(ops[i].Operands) != w.nargs {
			t.Errorf("op %d: expected %s/%d, got %s/%d", i, w.op, w.nargs, ops[i].Operator, len(ops[i].Operands))
		}
	}
}

// TestContentStreamInlineImage tests BI ... ID ... EI handling
func TestContentStreamInlineImage(t *testing.T) {
	content := "q BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff EI Q"
	ops, err := NewContentStreamParser([]byte(content)).ParseOperations()
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "BI" {
		t.Fatalf("Unexpected operations %v", ops)
	}

	dict := ops[1].Operands[0].(Dictionary)
	data := ops[1].Operands[1].(String)
	if string(data.Value) != "\x00\xff" {
		t.Errorf("Unexpected inline data %q", data.Value)
	}

	stream := expandInlineImage(dict, data.Value)
	if cs, _ := stream.Dictionary.GetName("ColorSpace"); cs != "DeviceGray" {
		t.Errorf("Expected expanded DeviceGray, got %q", cs)
	}
	if w, _ := stream.Dictionary.GetInt("Width"); w != 2 {
		t.Errorf("Expected expanded Width 2, got %d", w)
	}
}

// TestContentStreamTolerance tests that garbage does not lose later operators
func TestContentStreamTolerance(t *testing.T) {
	ops, _ := NewContentStreamParser([]byte("1 0 0 rg ) > 0 0 5 5 re f")).ParseOperations()
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	if len(names) != 3 || names[0] != "rg" || names[1] != "re" || names[2] != "f" {
		t.Errorf("Unexpected operators %v", names)
	}
}
