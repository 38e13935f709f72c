package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType classifies an uploaded file's declared content type
type FileType string

const (
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
	FileTypeCode     FileType = "code"
	FileTypeHTML     FileType = "html"
	FileTypeDocument FileType = "document"
	FileTypeUnknown  FileType = "unknown"
)

// FileStatus tracks per-file processing state
type FileStatus string

const (
	FileStatusPending FileStatus = "pending"
	FileStatusReady   FileStatus = "ready"
	FileStatusError   FileStatus = "error"
)

// UploadedFile represents a file ingested via upload, paste, or URL scrape.
// Files are session-scoped: they live in the registry and are never persisted.
type UploadedFile struct {
	ID           string     `json:"id"` // file_{uuid}
	Name         string     `json:"name"`
	Content      string     `json:"content"`
	Type         FileType   `json:"type"`
	Size         int        `json:"size"` // byte length of Content at ingestion
	LastModified time.Time  `json:"last_modified"`
	Preview      string     `json:"preview,omitempty"`

	// Populated by pipeline steps
	ExtractedText string         `json:"extracted_text,omitempty"`
	Analysis      string         `json:"analysis,omitempty"`
	Status        FileStatus     `json:"status,omitempty"`
	Error         string         `json:"error,omitempty"`
	Structure     *FileStructure `json:"structure,omitempty"`
}

// FileInput is the read-only projection of a file consumed by the pipeline
// and AI providers
type FileInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Heading is a single document heading extracted from file content
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// CodeBlock describes a fenced code block found in file content
type CodeBlock struct {
	Language string `json:"language"`
	Lines    int    `json:"lines"`
}

// FileStructure holds structural metadata extracted from file content
type FileStructure struct {
	Headings    []Heading              `json:"headings,omitempty"`
	CodeBlocks  []CodeBlock            `json:"code_blocks,omitempty"`
	ListCount   int                    `json:"list_count"`
	WordCount   int                    `json:"word_count"`
	FrontMatter map[string]interface{} `json:"front_matter,omitempty"`
}

// codeExtensions maps file extensions to the code file type
var codeExtensions = map[string]bool{
	".go": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".py": true, ".rb": true, ".rs": true, ".java": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".sh": true, ".sql": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".css": true, ".scss": true,
}

// DetectFileType infers a FileType from the file name extension
func DetectFileType(name string) FileType {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".md" || ext == ".markdown":
		return FileTypeMarkdown
	case ext == ".txt" || ext == ".log":
		return FileTypeText
	case ext == ".html" || ext == ".htm":
		return FileTypeHTML
	case ext == ".docx" || ext == ".doc" || ext == ".pdf" || ext == ".rtf":
		return FileTypeDocument
	case codeExtensions[ext]:
		return FileTypeCode
	default:
		return FileTypeUnknown
	}
}
