// Package testutil holds helpers shared by package tests. Not for production use.
package testutil

import (
	"bytes"
	"fmt"
)

// MinimalPDF builds a small but structurally valid PDF with one page per
// entry in pageTexts, each page carrying its text in an uncompressed content
// stream. Text must not contain parentheses or backslashes.
func MinimalPDF(pageTexts ...string) []byte {
	n := len(pageTexts)
	var buf bytes.Buffer
	offsets := make([]int, 0, 3+2*n)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	fontID := 3 + 2*n

	// 1: catalog
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	// 2: page tree
	kids := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))

	// 3..2+n: pages
	for i := 0; i < n; i++ {
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			3+i, 3+n+i, fontID))
	}

	// 3+n..2+2n: content streams
	for i := 0; i < n; i++ {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageTexts[i])
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			3+n+i, len(stream), stream))
	}

	// font
	writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontID))

	xrefOffset := buf.Len()
	size := len(offsets) + 1
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", size))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefOffset))

	return buf.Bytes()
}
