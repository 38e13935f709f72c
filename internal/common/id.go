package common

import (
	"github.com/google/uuid"
)

// NewFileID generates a unique file ID with the "file_" prefix.
// Format: file_<uuid>
func NewFileID() string {
	return "file_" + uuid.New().String()
}

// NewRunID generates a unique pipeline run ID with the "run_" prefix.
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
