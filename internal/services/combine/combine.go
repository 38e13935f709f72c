package combine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// Service merges extracted file content into a single markdown document.
// Simple and structured strategies are fully local; the smart strategy
// delegates compilation to the active AI provider.
type Service struct {
	ai       interfaces.AIService
	logger   arbor.ILogger
	validate *validator.Validate
	defaults models.CombinationOptions
}

func NewService(config *common.ProcessingConfig, ai interfaces.AIService, logger arbor.ILogger) *Service {
	defaults := models.DefaultCombinationOptions()
	if config != nil {
		if config.Strategy != "" {
			defaults.Strategy = models.CombinationStrategy(config.Strategy)
		}
		if config.Separator != "" {
			defaults.Separator = config.Separator
		}
		defaults.TableOfContents = config.TableOfContents
		defaults.PreserveStructure = config.PreserveStructure
		defaults.RemoveBlankLines = config.RemoveBlankLines
		defaults.RemoveDuplicates = config.RemoveDuplicates
	}

	return &Service{
		ai:       ai,
		logger:   logger,
		validate: validator.New(),
		defaults: defaults,
	}
}

// Combine merges the given files according to opts. A request without a
// strategy takes the configured processing defaults, keeping its own
// title and description. Files must already carry extracted text; files
// in error state are skipped with a warning.
func (s *Service) Combine(ctx context.Context, files []*models.UploadedFile, opts models.CombinationOptions) (*models.CombinationResult, error) {
	if opts.Strategy == "" {
		title, description := opts.Title, opts.Description
		opts = s.defaults
		opts.Title, opts.Description = title, description
	}
	if err := s.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid combination options: %w", err)
	}

	start := time.Now()

	usable, warnings := partitionUsable(files)
	if len(usable) == 0 {
		return nil, fmt.Errorf("no files with extractable content to combine")
	}

	s.logger.Info().
		Str("strategy", string(opts.Strategy)).
		Int("files", len(usable)).
		Msg("Combining files")

	var content string
	var sections int
	var err error

	switch opts.Strategy {
	case models.StrategySimple:
		content = s.combineSimple(usable, opts)
		sections = len(usable)
	case models.StrategyStructured:
		content, sections = s.combineStructured(usable, opts)
	case models.StrategySmart:
		content, err = s.combineSmart(ctx, usable, opts)
		if err != nil {
			return nil, err
		}
		sections = len(usable)
	default:
		return nil, fmt.Errorf("unknown combination strategy %q", opts.Strategy)
	}

	duplicatesRemoved := 0
	if opts.RemoveDuplicates {
		content, duplicatesRemoved = removeDuplicateParagraphs(content)
		if duplicatesRemoved > 0 {
			warnings = append(warnings, fmt.Sprintf("removed %d duplicate paragraphs", duplicatesRemoved))
		}
	}
	if opts.RemoveBlankLines {
		content = collapseBlankLines(content)
	}

	result := &models.CombinationResult{
		Content: content,
		Metadata: models.CombinationMetadata{
			FilesProcessed:    len(usable),
			TotalWords:        len(strings.Fields(content)),
			TotalCharacters:   len(content),
			DuplicatesRemoved: duplicatesRemoved,
			SectionsCreated:   sections,
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
		},
		Warnings:    warnings,
		Suggestions: s.buildSuggestions(usable, opts),
	}

	return result, nil
}

// combineSimple concatenates content with the configured separator
func (s *Service) combineSimple(files []*models.UploadedFile, opts models.CombinationOptions) string {
	var b strings.Builder

	if opts.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", opts.Title)
	}
	if opts.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", opts.Description)
	}

	separator := opts.Separator
	if separator == "" {
		separator = "---"
	}

	for i, file := range files {
		if i > 0 {
			fmt.Fprintf(&b, "\n%s\n\n", separator)
		}
		b.WriteString(strings.TrimSpace(contentOf(file)))
		b.WriteString("\n")
	}

	return b.String()
}

// combineStructured builds a sectioned document, one heading per file,
// with an optional table of contents
func (s *Service) combineStructured(files []*models.UploadedFile, opts models.CombinationOptions) (string, int) {
	var b strings.Builder

	title := opts.Title
	if title == "" {
		title = "Combined Document"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if opts.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", opts.Description)
	}

	if opts.TableOfContents {
		b.WriteString("## Table of Contents\n\n")
		for i, file := range files {
			name := sectionName(file)
			fmt.Fprintf(&b, "%d. [%s](#%s)\n", i+1, name, anchorFor(name))
		}
		b.WriteString("\n")
	}

	for _, file := range files {
		name := sectionName(file)
		fmt.Fprintf(&b, "## %s\n\n", name)

		body := strings.TrimSpace(contentOf(file))
		if opts.PreserveStructure {
			// Demote the file's own headings so they nest under the section
			body = demoteHeadings(body)
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n", len(files)
}

// combineSmart hands compilation to the active provider
func (s *Service) combineSmart(ctx context.Context, files []*models.UploadedFile, opts models.CombinationOptions) (string, error) {
	inputs := make([]models.FileInput, 0, len(files))
	for _, file := range files {
		inputs = append(inputs, models.FileInput{
			Name:    file.Name,
			Content: contentOf(file),
		})
	}

	documentName := opts.Title
	if documentName == "" {
		documentName = "Combined Document"
	}

	content, err := s.ai.ProcessFiles(ctx, inputs, documentName)
	if err != nil {
		return "", err
	}
	return content, nil
}

// AnalyzeRelationships derives pairwise relationships between files from
// word-level content overlap. Cheap to recompute; results are never stored.
func (s *Service) AnalyzeRelationships(files []*models.UploadedFile) []models.FileRelationship {
	var relationships []models.FileRelationship

	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			a, b := files[i], files[j]
			strength := jaccardSimilarity(contentOf(a), contentOf(b))

			var kind models.RelationshipKind
			var description string
			switch {
			case strength > 0.9:
				kind = models.RelationshipDuplicate
				description = fmt.Sprintf("%s and %s are near-identical", a.Name, b.Name)
			case strength > 0.5:
				kind = models.RelationshipSimilar
				description = fmt.Sprintf("%s and %s cover overlapping content", a.Name, b.Name)
			case strength > 0.2:
				kind = models.RelationshipComplementary
				description = fmt.Sprintf("%s and %s share related topics", a.Name, b.Name)
			case strings.Contains(contentOf(a), b.Name) || strings.Contains(contentOf(b), a.Name):
				kind = models.RelationshipReference
				description = fmt.Sprintf("one of %s, %s mentions the other", a.Name, b.Name)
			default:
				continue
			}

			relationships = append(relationships, models.FileRelationship{
				FileA:       a.ID,
				FileB:       b.ID,
				Kind:        kind,
				Strength:    strength,
				Description: description,
			})
		}
	}

	return relationships
}

// buildSuggestions surfaces follow-up actions appropriate to the result
func (s *Service) buildSuggestions(files []*models.UploadedFile, opts models.CombinationOptions) []string {
	var suggestions []string

	if opts.Strategy == models.StrategySimple && len(files) > 3 {
		suggestions = append(suggestions, "consider the structured strategy for easier navigation of many files")
	}
	if opts.Strategy != models.StrategySmart {
		for _, f := range files {
			if f.Analysis != "" {
				suggestions = append(suggestions, "analysis results are available; the smart strategy can use them for ordering")
				break
			}
		}
	}
	if !opts.TableOfContents && len(files) > 5 {
		suggestions = append(suggestions, "enable the table of contents for documents combining many files")
	}

	return suggestions
}

// partitionUsable splits files into those carrying content and warnings
// for those skipped
func partitionUsable(files []*models.UploadedFile) ([]*models.UploadedFile, []string) {
	var usable []*models.UploadedFile
	var warnings []string

	for _, file := range files {
		if file.Status == models.FileStatusError {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %s", file.Name, file.Error))
			continue
		}
		if strings.TrimSpace(contentOf(file)) == "" {
			warnings = append(warnings, fmt.Sprintf("skipped %s: no extractable content", file.Name))
			continue
		}
		usable = append(usable, file)
	}

	return usable, warnings
}

// contentOf prefers extracted text over raw content
func contentOf(file *models.UploadedFile) string {
	if file.ExtractedText != "" {
		return file.ExtractedText
	}
	return file.Content
}

// sectionName strips the extension from a filename for use as a heading
func sectionName(file *models.UploadedFile) string {
	name := file.Name
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}

var anchorCleaner = regexp.MustCompile(`[^a-z0-9\- ]`)

// anchorFor builds a github-style markdown anchor from a heading
func anchorFor(heading string) string {
	anchor := strings.ToLower(heading)
	anchor = anchorCleaner.ReplaceAllString(anchor, "")
	return strings.ReplaceAll(strings.TrimSpace(anchor), " ", "-")
}

var headingPattern = regexp.MustCompile(`(?m)^(#{1,5})\s`)

// demoteHeadings pushes every heading down one level so file-internal
// structure nests under the per-file section heading
func demoteHeadings(body string) string {
	return headingPattern.ReplaceAllString(body, "#$1 ")
}

// removeDuplicateParagraphs drops repeated paragraphs, keeping first
// occurrences, and reports how many were removed
func removeDuplicateParagraphs(content string) (string, int) {
	paragraphs := strings.Split(content, "\n\n")
	seen := make(map[string]bool, len(paragraphs))
	kept := make([]string, 0, len(paragraphs))
	removed := 0

	for _, p := range paragraphs {
		key := strings.TrimSpace(p)
		// Short fragments like separators and headings repeat legitimately
		if len(key) < 40 {
			kept = append(kept, p)
			continue
		}
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		kept = append(kept, p)
	}

	return strings.Join(kept, "\n\n"), removed
}

// collapseBlankLines reduces runs of blank lines to a single blank line
var blankRuns = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(content string) string {
	return blankRuns.ReplaceAllString(content, "\n\n")
}

// jaccardSimilarity measures word-set overlap between two texts
func jaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}
