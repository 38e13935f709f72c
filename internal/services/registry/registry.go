package registry

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// Service holds the authoritative, mutable list of ingested files for the
// session. Total count never exceeds the configured maximum, and every
// add assigns a fresh id with size computed from content. All checks
// are local and synchronous.
type Service struct {
	logger        arbor.ILogger
	maxFiles      int
	previewLength int

	mu    sync.RWMutex
	files []*models.UploadedFile
	index map[string]*models.UploadedFile
}

// FileUpdate is a partial patch applied to one file record
type FileUpdate struct {
	ExtractedText *string
	Analysis      *string
	Status        *models.FileStatus
	Error         *string
	Structure     *models.FileStructure
}

// NewService creates a registry bounded by the files configuration
func NewService(config *common.FilesConfig, logger arbor.ILogger) *Service {
	return &Service{
		logger:        logger,
		maxFiles:      config.MaxCount,
		previewLength: config.PreviewLength,
		index:         make(map[string]*models.UploadedFile),
	}
}

// newFile builds a record with a fresh id, detected type, and computed size
func (s *Service) newFile(name, content string, fileType models.FileType) *models.UploadedFile {
	if fileType == "" {
		fileType = models.DetectFileType(name)
	}

	preview := content
	if len(preview) > s.previewLength {
		cut := s.previewLength
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	return &models.UploadedFile{
		ID:           common.NewFileID(),
		Name:         name,
		Content:      content,
		Type:         fileType,
		Size:         len(content),
		LastModified: time.Now(),
		Preview:      preview,
		Status:       models.FileStatusPending,
	}
}

// Add ingests a single file. Fails with CapacityExceeded when the registry
// is full, leaving it unchanged.
func (s *Service) Add(name, content string, fileType models.FileType) (*models.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.files)+1 > s.maxFiles {
		return nil, interfaces.NewAIError(interfaces.ErrKindCapacityExceeded, "",
			fmt.Sprintf("registry holds at most %d files", s.maxFiles), nil)
	}

	file := s.newFile(name, content, fileType)
	s.files = append(s.files, file)
	s.index[file.ID] = file

	s.logger.Debug().
		Str("file_id", file.ID).
		Str("name", name).
		Int("size", file.Size).
		Msg("File added to registry")

	return file, nil
}

// AddBatch ingests multiple files atomically: if the batch would exceed
// capacity, nothing is added.
func (s *Service) AddBatch(inputs []models.FileInput) ([]*models.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.files)+len(inputs) > s.maxFiles {
		return nil, interfaces.NewAIError(interfaces.ErrKindCapacityExceeded, "",
			fmt.Sprintf("registry holds at most %d files", s.maxFiles), nil)
	}

	added := make([]*models.UploadedFile, 0, len(inputs))
	for _, input := range inputs {
		file := s.newFile(input.Name, input.Content, "")
		s.files = append(s.files, file)
		s.index[file.ID] = file
		added = append(added, file)
	}

	s.logger.Debug().Int("count", len(added)).Msg("File batch added to registry")
	return added, nil
}

// Get returns a copy of one file record
func (s *Service) Get(id string) (models.UploadedFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.index[id]
	if !ok {
		return models.UploadedFile{}, false
	}
	return *file, true
}

// List returns copies of all file records in insertion order
func (s *Service) List() []models.UploadedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UploadedFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out
}

// Count returns the number of files currently held
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Remove deletes one file by id
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	delete(s.index, id)
	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			break
		}
	}

	s.logger.Debug().Str("file_id", id).Msg("File removed from registry")
	return nil
}

// Clear removes all files
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = nil
	s.index = make(map[string]*models.UploadedFile)
	s.logger.Debug().Msg("Registry cleared")
}

// Update applies a partial patch to one file record
func (s *Service) Update(id string, patch FileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.index[id]
	if !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	if patch.ExtractedText != nil {
		file.ExtractedText = *patch.ExtractedText
	}
	if patch.Analysis != nil {
		file.Analysis = *patch.Analysis
	}
	if patch.Status != nil {
		file.Status = *patch.Status
	}
	if patch.Error != nil {
		file.Error = *patch.Error
	}
	if patch.Structure != nil {
		file.Structure = patch.Structure
	}

	return nil
}

// Projection returns the read-only {name, content} pairs consumed by the
// pipeline and providers. Extracted text takes precedence over raw content.
func (s *Service) Projection() []models.FileInput {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FileInput, 0, len(s.files))
	for _, f := range s.files {
		content := f.Content
		if f.ExtractedText != "" {
			content = f.ExtractedText
		}
		out = append(out, models.FileInput{Name: f.Name, Content: content})
	}
	return out
}

// Snapshot returns copies of all files for a pipeline run. The snapshot is
// fixed at pipeline start; later registry mutations do not affect the run.
func (s *Service) Snapshot() []models.UploadedFile {
	return s.List()
}
