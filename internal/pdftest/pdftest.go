// Package pdftest builds minimal but structurally valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// MinimalPDF returns a well-formed single-page PDF containing the given text
// in Helvetica. Cross-reference offsets are computed, not hardcoded, so the
// file parses with strict readers.
func MinimalPDF(text string) []byte {
	return MultiPagePDF(text)
}

// MultiPagePDF returns a well-formed PDF with one page per given text.
func MultiPagePDF(pageTexts ...string) []byte {
	if len(pageTexts) == 0 {
		pageTexts = []string{""}
	}
	var buf bytes.Buffer
	offsets := []int{0} // object 0 is the free head
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	n := len(pageTexts)
	// Object numbering: 1 catalog, 2 pages, 3..3+n-1 page objects,
	// 3+n..3+2n-1 content streams, 3+2n font.
	fontObj := 3 + 2*n
	kids := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))
	for i := 0; i < n; i++ {
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			3+i, 3+n+i, fontObj))
	}
	for i, text := range pageTexts {
		stream := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", escapeString(text))
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			3+n+i, len(stream), stream))
	}
	writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj))

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xrefStart)
	return buf.Bytes()
}

// escapeString escapes characters with special meaning in PDF literal strings.
func escapeString(s string) string {
	var out bytes.Buffer
	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
