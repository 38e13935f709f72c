package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

// settingsKey is the key/value storage key holding the serialized ConfigRecord
const settingsKey = "config_record"

// Service owns the in-memory ConfigRecord and writes every mutation
// through to key/value storage. Reads never touch storage after startup.
type Service struct {
	storage  interfaces.KeyValueStorage
	logger   arbor.ILogger
	mu       sync.RWMutex
	record   models.ConfigRecord
}

// NewService loads the persisted record, falling back to the supplied
// defaults when nothing is stored yet
func NewService(storage interfaces.KeyValueStorage, defaults models.ConfigRecord, logger arbor.ILogger) *Service {
	s := &Service{
		storage: storage,
		logger:  logger,
		record:  defaults,
	}

	ctx := context.Background()
	raw, err := storage.Get(ctx, settingsKey)
	if err != nil {
		if err != interfaces.ErrKeyNotFound {
			logger.Warn().Err(err).Msg("Failed to load settings, using defaults")
		}
		return s
	}

	var stored models.ConfigRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		logger.Warn().Err(err).Msg("Failed to parse stored settings, using defaults")
		return s
	}

	s.record = stored
	logger.Debug().
		Str("active_provider", string(stored.ActiveProvider)).
		Str("active_model", stored.ActiveModel).
		Msg("Settings loaded from storage")

	return s
}

// Get returns a copy of the current configuration record
func (s *Service) Get() models.ConfigRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Update applies the mutation under lock, then persists the whole record
// as one write. Persistence failures are logged and swallowed: write-through
// is fire-and-forget per the shared-resource policy.
func (s *Service) Update(mutate func(*models.ConfigRecord)) {
	s.mu.Lock()
	mutate(&s.record)
	snapshot := s.record
	s.mu.Unlock()

	s.persist(snapshot)
}

func (s *Service) persist(record models.ConfigRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to serialize settings")
		return
	}

	if err := s.storage.Set(context.Background(), settingsKey, string(data), "application settings"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist settings")
	}
}
