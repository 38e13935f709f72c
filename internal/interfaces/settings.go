package interfaces

import "github.com/contexo-app/contexo/internal/models"

// SettingsService owns the persisted ConfigRecord. Reads are served from
// memory; every mutation is written through to key/value storage.
// Persistence failures are logged, not propagated - losing a write-through
// never fails the operation that triggered it.
type SettingsService interface {
	// Get returns a copy of the current configuration record
	Get() models.ConfigRecord

	// Update applies the mutation atomically and persists the result.
	// Mutations that change related fields together (provider + model)
	// are flushed as one write.
	Update(mutate func(*models.ConfigRecord))
}
