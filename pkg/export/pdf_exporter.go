package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const pdfTableWidth = 190.0 // A4 portrait minus the 10mm side margins

// PDFExporter lays a Dataset out as a single bordered table, one page
// feed at a time. Columns share the width evenly.
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render builds the PDF. An empty title skips the heading block.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf export: dataset has no headers")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(10, 15, 10)
	doc.AddPage()

	if title != "" {
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		doc.Ln(5)
	}

	colWidth := pdfTableWidth / float64(len(data.Headers))

	doc.SetFont("Arial", "B", 10)
	for _, h := range data.Headers {
		doc.CellFormat(colWidth, 8, h, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, h := range data.Headers {
			doc.CellFormat(colWidth, 7, row[h], "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf export: %w", err)
	}
	return buf.Bytes(), nil
}
