package reporting

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
)

const (
	pdfMargin     = 15.0
	pdfLineHeight = 5.0
	pdfFontSize   = 10.0
)

// renderPDF lays the report out as Helvetica text on A4 pages. Agent and event
// names are translated to cp1252 so accented names survive the core font.
func renderPDF(ctx context.Context, rows []models.CommissionPayment, generated string) ([]byte, error) {
	lines, err := reportLines(ctx, rows, generated)
	if err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetTitle("Commission Report", true)
	doc.SetCreator("commission-engine", true)
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetFont("Helvetica", "", pdfFontSize)
	translate := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.CellFormat(0, pdfLineHeight, translate(line), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
