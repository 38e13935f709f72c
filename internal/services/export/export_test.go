package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/models"
)

const sample = "# Title\n\nBody paragraph.\n\n```go\nfunc main() {}\n```\n"

func TestRenderMarkdownPassthrough(t *testing.T) {
	s := NewService(arbor.NewLogger())

	out, err := s.Render(sample, "doc", models.OutputMarkdown)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if out.Filename != "doc.md" {
		t.Errorf("filename = %q", out.Filename)
	}
	if string(out.Data) != sample {
		t.Error("markdown export must pass content through unchanged")
	}
}

func TestRenderDefaultsToMarkdown(t *testing.T) {
	s := NewService(arbor.NewLogger())

	out, err := s.Render(sample, "", "")
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if out.Filename != "combined.md" {
		t.Errorf("filename = %q, want the default name", out.Filename)
	}
}

func TestRenderHTML(t *testing.T) {
	s := NewService(arbor.NewLogger())

	out, err := s.Render(sample, "doc", models.OutputHTML)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	html := string(out.Data)
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "Title") {
		t.Errorf("heading not rendered:\n%s", html)
	}
	if !strings.Contains(html, "<title>doc</title>") {
		t.Errorf("page title missing:\n%s", html)
	}
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("output is not a full HTML page")
	}
}

func TestRenderPDF(t *testing.T) {
	s := NewService(arbor.NewLogger())

	out, err := s.Render(sample, "doc", models.OutputPDF)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if out.Filename != "doc.pdf" || out.ContentType != "application/pdf" {
		t.Errorf("export = {%q, %q}", out.Filename, out.ContentType)
	}
	if !bytes.HasPrefix(out.Data, []byte("%PDF")) {
		t.Error("output is not a PDF document")
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	s := NewService(arbor.NewLogger())
	if _, err := s.Render(sample, "doc", "docx"); err == nil {
		t.Error("unknown format should fail")
	}
}
