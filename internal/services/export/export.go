package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/contexo-app/contexo/internal/models"
)

// Export is a rendered document ready for download
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service renders a combined markdown document into a downloadable format
type Service struct {
	logger   arbor.ILogger
	markdown goldmark.Markdown
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Render produces the document in the requested output format
func (s *Service) Render(content, name string, format models.OutputFormat) (*Export, error) {
	if name == "" {
		name = "combined"
	}

	switch format {
	case models.OutputMarkdown, "":
		return &Export{
			Filename:    name + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Data:        []byte(content),
		}, nil

	case models.OutputHTML:
		html, err := s.renderHTML(content, name)
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    name + ".html",
			ContentType: "text/html; charset=utf-8",
			Data:        html,
		}, nil

	case models.OutputPDF:
		pdf, err := s.renderPDF(content, name)
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    name + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func (s *Service) renderHTML(content, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", title)
	page.WriteString("<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;line-height:1.6}pre{background:#f4f4f4;padding:1rem;overflow-x:auto}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("\n</body>\n</html>\n")

	return page.Bytes(), nil
}

// renderPDF walks the markdown line by line with simple typography:
// headings get larger bold faces, code blocks a monospace face, the rest
// flows as wrapped body text
func (s *Service) renderPDF(content, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	inCode := false
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "```"):
			inCode = !inCode

		case inCode:
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 4.5, line, "", "L", false)

		case strings.HasPrefix(line, "# "):
			pdf.SetFont("Helvetica", "B", 18)
			pdf.MultiCell(0, 9, strings.TrimPrefix(line, "# "), "", "L", false)
			pdf.Ln(2)

		case strings.HasPrefix(line, "## "):
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 7, strings.TrimPrefix(line, "## "), "", "L", false)
			pdf.Ln(1)

		case strings.HasPrefix(line, "### "):
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 6, strings.TrimPrefix(line, "### "), "", "L", false)

		case strings.TrimSpace(line) == "":
			pdf.Ln(3)

		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 5.5, stripInlineMarkdown(line), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

var inlineReplacer = strings.NewReplacer("**", "", "__", "", "`", "")

func stripInlineMarkdown(line string) string {
	return inlineReplacer.Replace(line)
}
