package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

// buildPDF writes objects 1..n with a classic xref table. trailer holds
// extra trailer entries; Root is always object 1.
func buildPDF(objects []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(formatXRefEntry(off))
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R %s >>\n", len(objects)+1, trailer)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func formatXRefEntry(offset int) string {
	return fmt.Sprintf("%010d 00000 n \n", offset)
}

// createMinimalPDF creates a minimal valid one-page PDF
func createMinimalPDF() []byte {
	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}, "")
}

// createPagesPDF creates an n-page PDF whose pages each carry content
func createPagesPDF(n int) []byte {
	kids := make([]string, n)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // pages node, filled below
	}
	for i := 0; i < n; i++ {
		pageNum := len(objects) + 1
		kids[i] = fmt.Sprintf("%d 0 R", pageNum)
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i+1)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", pageNum+1),
			streamObject("", []byte(content)),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 200 300] >>",
		strings.Join(kids, " "), n)
	return buildPDF(objects, "")
}

// createContentPDF creates a single page of the given size drawing content
func createContentPDF(width, height int, content string, pageExtra string) []byte {
	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R %s >>",
			width, height, pageExtra),
		streamObject("", []byte(content)),
	}, "")
}

func streamObject(dict string, data []byte) string {
	return fmt.Sprintf("<< /Length %d %s >>\nstream\n%s\nendstream", len(data), dict, data)
}
