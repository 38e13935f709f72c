package ai

import (
	"fmt"
	"strings"

	"github.com/contexo-app/contexo/internal/models"
)

// buildCompilationPrompt renders the file set into a single compilation
// instruction. Both providers share this prompt; only transport differs.
func buildCompilationPrompt(files []models.FileInput, documentName string) string {
	var b strings.Builder

	b.WriteString("Combine the following files into a single well-structured markdown document")
	if documentName != "" {
		fmt.Fprintf(&b, " titled %q", documentName)
	}
	b.WriteString(".\n")
	b.WriteString("Merge related content, remove redundancy, and preserve code blocks exactly.\n")
	b.WriteString("Return only the combined markdown document.\n\n")

	for _, f := range files {
		fmt.Fprintf(&b, "=== FILE: %s ===\n%s\n\n", f.Name, f.Content)
	}

	return b.String()
}

// buildCondensePrompt asks for a shortened version of the content
func buildCondensePrompt(content string) string {
	return "Condense the following document, preserving headings and key points. " +
		"Return only the condensed markdown.\n\n" + content
}

// buildContextPrompt concatenates file context ahead of a user message,
// the keyed provider's plain-generation chat path
func buildContextPrompt(message string, context []models.FileInput) string {
	if len(context) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("You are answering questions about the user's uploaded files.\n\n")
	for _, f := range context {
		fmt.Fprintf(&b, "=== FILE: %s ===\n%s\n\n", f.Name, f.Content)
	}
	b.WriteString("USER QUESTION: ")
	b.WriteString(message)
	return b.String()
}
