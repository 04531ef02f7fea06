package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	baseFont     = "Arial"
	baseSize     = 10.0
	lineHeight   = 5.0
	contentWidth = 190.0 // A4 width minus 10mm margins
)

// Renderer exports derived Markdown text as a PDF document
type Renderer struct {
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewRenderer creates a Markdown to PDF renderer
func NewRenderer(logger arbor.ILogger) *Renderer {
	return &Renderer{
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
		logger:   logger,
	}
}

// RenderMarkdown converts markdown to PDF bytes, with title set as document metadata and first heading
func (r *Renderer) RenderMarkdown(markdown, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.SetTitle(title, true)
	doc.AddPage()

	w := &pdfWriter{
		pdf:       doc,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
	}

	if title != "" {
		doc.SetFont(baseFont, "B", 16)
		doc.MultiCell(0, 8, w.translate(title), "", "L", false)
		doc.Ln(4)
	}
	w.setFont()

	source := []byte(markdown)
	root := r.markdown.Parser().Parse(text.NewReader(source))
	w.source = source

	if err := ast.Walk(root, w.walk); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	r.logger.Debug().
		Int("markdown_len", len(markdown)).
		Int("pdf_size", buf.Len()).
		Msg("Rendered markdown to PDF")

	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf       *fpdf.Fpdf
	translate func(string) string
	source    []byte
	bold      bool
	italic    bool
	listDepth int
}

func (w *pdfWriter) setFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(baseFont, style, baseSize)
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(3)
			w.pdf.SetFont(baseFont, "B", 15-float64(node.Level))
		} else {
			w.pdf.Ln(7)
			w.setFont()
		}
	case *ast.Paragraph:
		if !entering && w.listDepth == 0 {
			w.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			w.pdf.Write(lineHeight, w.translate(string(node.Segment.Value(w.source))))
			if node.SoftLineBreak() {
				w.pdf.Write(lineHeight, " ")
			}
			if node.HardLineBreak() {
				w.pdf.Ln(lineHeight)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.setFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", baseSize)
			w.pdf.Write(lineHeight, w.translate(nodeText(node, w.source)))
			w.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listDepth++
		} else {
			w.listDepth--
			w.pdf.Ln(lineHeight)
			if w.listDepth == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			if w.pdf.GetX() > 10.5 {
				w.pdf.Ln(lineHeight)
			}
			w.pdf.SetX(10 + float64(w.listDepth)*5)
			w.pdf.Write(lineHeight, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(10, w.pdf.GetY(), 200, w.pdf.GetY())
			w.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			w.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	w.pdf.SetFont("Courier", "", 9)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.pdf.MultiCell(0, 4.5, w.translate(strings.TrimRight(string(line.Value(w.source)), "\n")), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.pdf.Ln(3)
	w.setFont()
}

func (w *pdfWriter) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			row = append(row, w.translate(nodeText(cell, w.source)))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	colWidth := contentWidth / float64(len(rows[0]))
	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont(baseFont, "B", 8)
		} else {
			w.pdf.SetFont(baseFont, "", 8)
		}
		for j := range rows[0] {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			w.pdf.CellFormat(colWidth, 6, truncateToWidth(w.pdf, cell, colWidth-2), "1", 0, "L", i == 0, 0, "")
		}
		w.pdf.Ln(-1)
	}
	w.pdf.Ln(3)
	w.setFont()
}

// nodeText concatenates the text segments beneath n
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := child.(*ast.Text); ok && entering {
			sb.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func truncateToWidth(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
