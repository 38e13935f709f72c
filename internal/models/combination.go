package models

// CombinationStrategy selects how files are merged into one document
type CombinationStrategy string

const (
	// StrategySimple concatenates extracted content with separators
	StrategySimple CombinationStrategy = "simple"
	// StrategyStructured builds a sectioned document with optional table of contents
	StrategyStructured CombinationStrategy = "structured"
	// StrategySmart delegates compilation to the active AI provider
	StrategySmart CombinationStrategy = "smart"
)

// OutputFormat selects the rendering of the combined document
type OutputFormat string

const (
	OutputMarkdown OutputFormat = "markdown"
	OutputHTML     OutputFormat = "html"
	OutputPDF      OutputFormat = "pdf"
)

// CombinationOptions configures the combine stage
type CombinationOptions struct {
	Strategy          CombinationStrategy `json:"strategy" validate:"required,oneof=simple structured smart"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	TableOfContents   bool                `json:"table_of_contents"`
	Separator         string              `json:"separator"`
	PreserveStructure bool                `json:"preserve_structure"`
	RemoveBlankLines  bool                `json:"remove_blank_lines"`
	RemoveDuplicates  bool                `json:"remove_duplicates"`
	OutputFormat      OutputFormat        `json:"output_format" validate:"omitempty,oneof=markdown html pdf"`
}

// DefaultCombinationOptions returns the combine defaults used when the
// caller supplies no processing preferences
func DefaultCombinationOptions() CombinationOptions {
	return CombinationOptions{
		Strategy:          StrategyStructured,
		TableOfContents:   true,
		Separator:         "---",
		PreserveStructure: true,
		RemoveBlankLines:  false,
		RemoveDuplicates:  true,
		OutputFormat:      OutputMarkdown,
	}
}

// CombinationMetadata summarizes a combination run
type CombinationMetadata struct {
	FilesProcessed    int   `json:"files_processed"`
	TotalWords        int   `json:"total_words"`
	TotalCharacters   int   `json:"total_characters"`
	DuplicatesRemoved int   `json:"duplicates_removed"`
	SectionsCreated   int   `json:"sections_created"`
	ProcessingTimeMs  int64 `json:"processing_time_ms"`
}

// CombinationResult is the immutable product of a successful combine step
type CombinationResult struct {
	Content     string              `json:"content"`
	Metadata    CombinationMetadata `json:"metadata"`
	Warnings    []string            `json:"warnings,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

// RelationshipKind classifies how two files relate
type RelationshipKind string

const (
	RelationshipSimilar       RelationshipKind = "similar"
	RelationshipComplementary RelationshipKind = "complementary"
	RelationshipDuplicate     RelationshipKind = "duplicate"
	RelationshipReference     RelationshipKind = "reference"
)

// FileRelationship is a derived, recomputable link between two files
type FileRelationship struct {
	FileA       string           `json:"file_a"`
	FileB       string           `json:"file_b"`
	Kind        RelationshipKind `json:"kind"`
	Strength    float64          `json:"strength"` // 0..1
	Description string           `json:"description"`
}
