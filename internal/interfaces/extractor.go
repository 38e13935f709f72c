package interfaces

import "github.com/contexo-app/contexo/internal/models"

// TextExtractor produces plain text and structural metadata from raw file
// content. Stateless; may fail per file.
type TextExtractor interface {
	// ExtractText returns the plain text content of a file
	ExtractText(file *models.UploadedFile) (string, error)

	// ExtractMetadata returns structural metadata (headings, code blocks,
	// lists, front matter) for a file
	ExtractMetadata(file *models.UploadedFile) (*models.FileStructure, error)
}
