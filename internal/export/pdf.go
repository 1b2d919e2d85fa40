package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	rowHeight  = 6.0
)

// PDF is an A4 report document made of tabular sections
type PDF struct {
	doc       *fpdf.Fpdf
	translate func(string) string
}

// NewPDF starts a document with the title and generation time on the first page
func NewPDF(title string, generatedAt time.Time) *PDF {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetAutoPageBreak(false, 15)
	p := &PDF{doc: doc, translate: doc.UnicodeTranslatorFromDescriptor("")}

	doc.AddPage()
	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, p.translate(title), "", 1, "L", false, 0, "")
	doc.SetFont(fontFamily, "", 9)
	doc.CellFormat(0, 6, "Generated at "+generatedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	doc.Ln(4)
	return p
}

// AddSection draws a table. When limit > 0 only the first limit rows are
// drawn, followed by a note with the full row count.
func (p *PDF) AddSection(t Table, limit int) {
	doc := p.doc
	if t.Title != "" {
		p.ensureSpace(rowHeight * 3)
		doc.SetFont(fontFamily, "B", 12)
		doc.CellFormat(0, 8, p.translate(t.Title), "", 1, "L", false, 0, "")
	}

	if len(t.Headers) == 0 {
		return
	}
	width := p.columnWidth(len(t.Headers))
	p.header(t.Headers, width)

	rows := t.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	doc.SetFont(fontFamily, "", 9)
	for _, r := range rows {
		if p.ensureSpace(rowHeight) {
			p.header(t.Headers, width)
			doc.SetFont(fontFamily, "", 9)
		}
		for i := range t.Headers {
			var v interface{}
			if i < len(r) {
				v = r[i]
			}
			doc.CellFormat(width, rowHeight, p.fit(formatCell(v), width), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	if len(rows) == 0 {
		doc.SetFont(fontFamily, "I", 9)
		doc.CellFormat(0, rowHeight, "No data for the selected period", "", 1, "L", false, 0, "")
	}
	if len(rows) < len(t.Rows) {
		doc.SetFont(fontFamily, "I", 8)
		doc.CellFormat(0, rowHeight, fmt.Sprintf("Showing %d of %d rows", len(rows), len(t.Rows)), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)
}

// Write renders the document
func (p *PDF) Write(w io.Writer) error {
	if err := p.doc.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func (p *PDF) header(headers []string, width float64) {
	p.doc.SetFont(fontFamily, "B", 9)
	p.doc.SetFillColor(230, 230, 230)
	for _, h := range headers {
		p.doc.CellFormat(width, rowHeight, p.fit(h, width), "1", 0, "L", true, 0, "")
	}
	p.doc.Ln(-1)
}

// ensureSpace adds a page when h does not fit; it reports whether it did
func (p *PDF) ensureSpace(h float64) bool {
	_, pageHeight := p.doc.GetPageSize()
	_, _, _, bottom := p.doc.GetMargins()
	if p.doc.GetY()+h <= pageHeight-bottom {
		return false
	}
	p.doc.AddPage()
	return true
}

func (p *PDF) columnWidth(n int) float64 {
	pageWidth, _ := p.doc.GetPageSize()
	left, _, right, _ := p.doc.GetMargins()
	return (pageWidth - left - right) / float64(n)
}

// fit shortens text so it stays inside a cell of the given width
func (p *PDF) fit(text string, width float64) string {
	text = p.translate(text)
	limit := width - 2
	if p.doc.GetStringWidth(text) <= limit {
		return text
	}
	for len(text) > 0 && p.doc.GetStringWidth(text+"...") > limit {
		text = text[:len(text)-1]
	}
	return text + "..."
}
