package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/contexo-app/contexo/internal/models"
)

// Service implements the TextExtractor contract: plain text plus
// structural metadata from raw file content. Stateless; every method may
// fail per file without affecting others.
type Service struct {
	logger    arbor.ILogger
	markdown  goldmark.Markdown
	converter *md.Converter
}

// NewService creates a text extractor
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger:    logger,
		markdown:  goldmark.New(),
		converter: md.NewConverter("", true, nil),
	}
}

// ExtractText returns the plain text content of a file. Markdown files
// are returned without front matter; HTML is converted to markdown;
// text and code pass through unchanged.
func (s *Service) ExtractText(file *models.UploadedFile) (string, error) {
	if !utf8.ValidString(file.Content) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", file.Name)
	}

	switch file.Type {
	case models.FileTypeMarkdown:
		_, body := splitFrontMatter(file.Content)
		return body, nil

	case models.FileTypeHTML:
		return s.htmlToMarkdown(file.Content)

	case models.FileTypeDocument:
		// Binary document formats arrive here only when the upload layer
		// already decoded them; raw binary content is rejected.
		if strings.ContainsRune(file.Content, '\x00') {
			return "", fmt.Errorf("file %s contains binary content that cannot be extracted", file.Name)
		}
		return file.Content, nil

	default:
		return file.Content, nil
	}
}

// ExtractMetadata returns structural metadata for a file. HTML is first
// converted to markdown so both share one structure pass.
func (s *Service) ExtractMetadata(file *models.UploadedFile) (*models.FileStructure, error) {
	var content string
	var frontMatter map[string]interface{}

	switch file.Type {
	case models.FileTypeMarkdown:
		frontMatter, content = splitFrontMatter(file.Content)

	case models.FileTypeHTML:
		converted, err := s.htmlToMarkdown(file.Content)
		if err != nil {
			return nil, err
		}
		content = converted

	default:
		content = file.Content
	}

	structure := s.parseStructure(content)
	structure.FrontMatter = frontMatter
	return structure, nil
}

// htmlToMarkdown strips non-content elements and converts the remainder
func (s *Service) htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, iframe").Remove()

	cleaned, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(cleaned) == "" {
		cleaned = html
	}

	markdown, err := s.converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return strings.TrimSpace(markdown), nil
}

// parseStructure walks the markdown AST collecting headings, fenced code
// blocks, and lists
func (s *Service) parseStructure(content string) *models.FileStructure {
	src := []byte(content)
	doc := s.markdown.Parser().Parse(gmtext.NewReader(src))

	structure := &models.FileStructure{
		WordCount: len(strings.Fields(content)),
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			structure.Headings = append(structure.Headings, models.Heading{
				Level: node.Level,
				Text:  string(node.Text(src)),
			})
		case *ast.FencedCodeBlock:
			structure.CodeBlocks = append(structure.CodeBlocks, models.CodeBlock{
				Language: string(node.Language(src)),
				Lines:    node.Lines().Len(),
			})
		case *ast.List:
			structure.ListCount++
		}

		return ast.WalkContinue, nil
	})

	return structure
}

// splitFrontMatter separates a leading YAML front matter block from the
// markdown body. Unparseable front matter is left in the body untouched.
func splitFrontMatter(content string) (map[string]interface{}, string) {
	trimmed := strings.TrimLeft(content, "\uFEFF")
	if !strings.HasPrefix(trimmed, "---\n") && trimmed != "---" {
		return nil, content
	}

	rest := strings.TrimPrefix(trimmed, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, content
	}

	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, content
	}

	return meta, body
}
