package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"flowpanel/internal/core"
)

// The core PDF fonts only cover cp1252, so symbols outside it are spelled out
// before translation.
var pdfReplacer = strings.NewReplacer(
	"α", "alpha",
	"⁶", "^6",
	"⁷", "^7",
	"™", "(TM)",
)

const (
	pdfPageWidth = 190.0
	pdfLine      = 6.0
)

// RenderProtocolPDF lays out the protocol as an A4 document.
func RenderProtocolPDF(p core.Protocol) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfReplacer.Replace(s)) }

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(pdfPageWidth, 10, text(p.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(pdfPageWidth, pdfLine, text("Project: "+p.Project), "", 1, "C", false, 0, "")
	pdf.CellFormat(pdfPageWidth, pdfLine, fmt.Sprintf("Generated: %s", p.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pdfPageWidth, 8, "Experiment", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(pdfPageWidth/2, 7, fmt.Sprintf("Reagents: %d", p.ReagentCount), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(pdfPageWidth/2, 7, fmt.Sprintf("Tubes: %d", p.TubeCount), "RB", 1, "L", false, 0, "")
	pdf.Ln(4)

	writePDFSections(pdf, text, "Staining steps", p.Steps)
	if len(p.Recipes) > 0 {
		writePDFSections(pdf, text, "Master mixes", p.Recipes)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pdfPageWidth, 8, "Notes", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for i, note := range p.Notes {
		pdf.MultiCell(pdfPageWidth, pdfLine, text(fmt.Sprintf("%d. %s", i+1, note)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render protocol pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDFSections(pdf *gofpdf.Fpdf, text func(string) string, heading string, sections []core.ProtocolSection) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pdfPageWidth, 8, heading, "1", 1, "L", true, 0, "")
	for _, s := range sections {
		pdf.SetFont("Arial", "B", 10)
		pdf.MultiCell(pdfPageWidth, pdfLine, text(s.Title), "", "L", false)
		pdf.SetFont("Arial", "", 10)
		for i, line := range s.Lines {
			pdf.MultiCell(pdfPageWidth, pdfLine, text(fmt.Sprintf("   %c. %s", 'a'+rune(i), line)), "", "L", false)
		}
		pdf.Ln(2)
	}
	pdf.Ln(2)
}
