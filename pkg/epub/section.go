package epub

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// Section is one readable spine item, in reading order.
type Section struct {
	Index     int
	ID        string
	Href      string
	MediaType string
	Linear    bool
}

// Content is the extracted text of a section. Paragraphs are separated by
// a single newline.
type Content struct {
	Title string
	Text  string
}

// Paragraphs splits the text on newlines, dropping empty lines.
func (c Content) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(c.Text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
	atom.Section:    true,
	atom.Pre:        true,
}

var headingTags = map[atom.Atom]bool{
	atom.H1: true,
	atom.H2: true,
	atom.H3: true,
}

// selfClosingRaw matches <script/> and <style/>, which the HTML tokenizer
// would otherwise treat as opening a raw text element.
var selfClosingRaw = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

func normalize(s string) string {
	return norm.NFC.String(s)
}

// extractContent tokenizes an XHTML document into plain text. Block
// elements break lines; script, style and head content is skipped except
// for <title>, which is used when the body has no heading.
func extractContent(data []byte) (Content, error) {
	data = selfClosingRaw.ReplaceAll(stripBOM(data), []byte(`<$1$2></$1>`))
	z := html.NewTokenizer(bytes.NewReader(data))

	var (
		buf        strings.Builder
		heading    strings.Builder
		docTitle   strings.Builder
		skip       int
		inHeading  int
		inTitle    bool
		gotHeading bool
		atLineHead = true
	)
	newline := func() {
		if buf.Len() > 0 && !atLineHead {
			buf.WriteByte('\n')
			atLineHead = true
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return Content{}, err
			}
			title := strings.TrimSpace(heading.String())
			if title == "" {
				title = strings.TrimSpace(docTitle.String())
			}
			lines := strings.Split(buf.String(), "\n")
			for i := range lines {
				lines[i] = strings.TrimSpace(lines[i])
			}
			return Content{
				Title: normalize(strings.Join(strings.Fields(title), " ")),
				Text:  normalize(strings.TrimSpace(strings.Join(lines, "\n"))),
			}, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
				continue
			case a == atom.Title:
				inTitle = tt == html.StartTagToken
				continue
			}
			if skip > 0 {
				continue
			}
			if blockTags[a] {
				newline()
			}
			if headingTags[a] && tt == html.StartTagToken && !gotHeading {
				inHeading++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case (a == atom.Script || a == atom.Style) && skip > 0:
				skip--
			case a == atom.Title:
				inTitle = false
			case headingTags[a] && inHeading > 0:
				inHeading--
				if inHeading == 0 {
					gotHeading = true
				}
			}
			if blockTags[a] {
				newline()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if inTitle {
				docTitle.WriteString(text)
				continue
			}
			collapsed := collapseWhitespace(text, atLineHead)
			if collapsed == "" {
				continue
			}
			buf.WriteString(collapsed)
			atLineHead = false
			if inHeading > 0 {
				heading.WriteString(text)
			}
		}
	}
}

// collapseWhitespace folds whitespace runs into one space, keeping a single
// leading or trailing space so inline elements stay separated. Leading space
// is dropped at the start of a line.
func collapseWhitespace(s string, lineHead bool) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if !lineHead && s != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if !lineHead && isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
