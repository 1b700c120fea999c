package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pdfFont       = "Arial"
	pdfBodySize   = 9.0
	pdfLineHeight = 5.0
	pdfPageWidth  = 190.0 // A4 width less 10mm margins
	pdfTableFont  = 8.0
	pdfTableLine  = 4.0
	pdfMaxRowLine = 8
)

// PDF renders the Markdown report to an A4 document
func PDF(d *Dashboard) ([]byte, error) {
	source := []byte(Markdown(d))
	doc := newMarkdown().Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(d.Title, true)
	pdf.SetCreator("bizaudit", true)
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)

	r := &pdfRenderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 7)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(pdfPageWidth/2, 5, r.tr(d.Title), "", 0, "L", false, 0, "")
		pdf.CellFormat(pdfPageWidth/2, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()
	r.updateFont()

	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfRenderer walks the goldmark AST of a report and draws it with fpdf
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string // UTF-8 to the core font code page
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(pdfFont, style, pdfBodySize)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(pdfLineHeight, r.tr(s))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(pdfLineHeight + 1)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(pdfLineHeight)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.AutoLink:
		if entering {
			r.write(string(node.URL(r.source)))
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(pdfLineHeight)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(pdfLineHeight)
			r.pdf.SetX(12 + float64(r.listLevel)*4)
			r.write("- ")
		}
	case *extast.Table:
		if entering {
			r.table(node)
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(pdfLineHeight + 2)
		r.pdf.SetTextColor(0, 0, 0)
		r.updateFont()
		return
	}

	size := 10.0
	switch n.Level {
	case 1:
		size = 16
	case 2:
		size = 13
		// Keep a section heading with at least a few lines of its body
		if _, y := r.pdf.GetXY(); y > 250 {
			r.pdf.AddPage()
		}
	case 3:
		size = 11
	}
	r.pdf.Ln(3)
	r.pdf.SetFont(pdfFont, "B", size)
	if n.Level <= 2 {
		r.pdf.SetTextColor(30, 60, 110)
	}
}

func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader:
			rows = append(rows, r.cells(row))
		case *extast.TableRow:
			rows = append(rows, r.cells(row))
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	widths := r.columnWidths(rows, cols)

	r.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(pdfFont, style, pdfTableFont)

		lines := 1
		for j := 0; j < cols && j < len(row); j++ {
			if n := len(r.wrap(row[j], widths[j]-2)); n > lines {
				lines = n
			}
		}
		if lines > pdfMaxRowLine {
			lines = pdfMaxRowLine
		}
		height := float64(lines)*pdfTableLine + 2

		x, y := r.pdf.GetXY()
		_, pageHeight := r.pdf.GetPageSize()
		if y+height > pageHeight-15 {
			r.pdf.AddPage()
			x, y = r.pdf.GetXY()
		}

		cx := x
		for j := 0; j < cols; j++ {
			if i == 0 {
				r.pdf.SetFillColor(230, 235, 245)
				r.pdf.Rect(cx, y, widths[j], height, "FD")
			} else {
				r.pdf.Rect(cx, y, widths[j], height, "D")
			}
			if j < len(row) {
				wrapped := r.wrap(row[j], widths[j]-2)
				if len(wrapped) > lines {
					wrapped = append(wrapped[:lines-1], wrapped[lines-1]+"...")
				}
				for k, line := range wrapped {
					r.pdf.SetXY(cx+1, y+1+float64(k)*pdfTableLine)
					r.pdf.CellFormat(widths[j]-2, pdfTableLine, r.tr(line), "", 0, "L", false, 0, "")
				}
			}
			cx += widths[j]
		}
		r.pdf.SetXY(x, y+height)
	}
	r.pdf.Ln(3)
	r.updateFont()
}

func (r *pdfRenderer) cells(row ast.Node) []string {
	var out []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			out = append(out, strings.TrimSpace(string(cell.Text(r.source))))
		}
	}
	return out
}

// columnWidths sizes columns by their widest cell, capped so long text
// wraps, and scales the result to the page width
func (r *pdfRenderer) columnWidths(rows [][]string, cols int) []float64 {
	r.pdf.SetFont(pdfFont, "", pdfTableFont)
	widths := make([]float64, cols)
	for _, row := range rows {
		for j := 0; j < cols && j < len(row); j++ {
			if w := r.pdf.GetStringWidth(r.tr(row[j])) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < 20 {
			widths[j] = 20
		}
		if widths[j] > pdfPageWidth*0.6 {
			widths[j] = pdfPageWidth * 0.6
		}
		total += widths[j]
	}
	scale := pdfPageWidth / total
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

// wrap breaks text into lines no wider than width in the current font
func (r *pdfRenderer) wrap(s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if r.pdf.GetStringWidth(r.tr(candidate)) <= width {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}
