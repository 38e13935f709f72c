package registry

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/interfaces"
	"github.com/contexo-app/contexo/internal/models"
)

func newTestRegistry(maxFiles int) *Service {
	return NewService(&common.FilesConfig{
		MaxCount:      maxFiles,
		PreviewLength: 100,
	}, arbor.NewLogger())
}

func TestAdd(t *testing.T) {
	reg := newTestRegistry(10)

	file, err := reg.Add("notes.md", "# Notes\n\nsome content", models.FileTypeMarkdown)
	if err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	if !strings.HasPrefix(file.ID, "file_") {
		t.Errorf("file ID = %q, want file_ prefix", file.ID)
	}
	if file.Size != len("# Notes\n\nsome content") {
		t.Errorf("Size = %d, want content length", file.Size)
	}
	if file.Status != models.FileStatusPending {
		t.Errorf("Status = %q, want pending", file.Status)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	reg := NewService(&common.FilesConfig{
		MaxCount:      10,
		PreviewLength: 5,
	}, arbor.NewLogger())

	// "日本語" is 9 bytes; a byte-index cut at 5 would land mid-rune
	file, err := reg.Add("notes.md", "日本語", models.FileTypeMarkdown)
	if err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	if !utf8.ValidString(file.Preview) {
		t.Errorf("Preview = %q is not valid UTF-8", file.Preview)
	}
	if file.Preview != "日" {
		t.Errorf("Preview = %q, want truncation back to the last whole rune", file.Preview)
	}
}

func TestAddAtCapacity(t *testing.T) {
	reg := newTestRegistry(2)

	if _, err := reg.Add("a.md", "a", models.FileTypeMarkdown); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	if _, err := reg.Add("b.md", "b", models.FileTypeMarkdown); err != nil {
		t.Fatalf("second Add() failed: %v", err)
	}

	_, err := reg.Add("c.md", "c", models.FileTypeMarkdown)
	if err == nil {
		t.Fatal("Add() beyond capacity should fail")
	}
	if !interfaces.IsKind(err, interfaces.ErrKindCapacityExceeded) {
		t.Errorf("error kind = %v, want capacity_exceeded", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d after rejected add, want 2", reg.Count())
	}
}

func TestAddAfterRemoveSucceeds(t *testing.T) {
	reg := newTestRegistry(2)

	a, _ := reg.Add("a.md", "a", models.FileTypeMarkdown)
	reg.Add("b.md", "b", models.FileTypeMarkdown)

	if err := reg.Remove(a.ID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	if _, err := reg.Add("c.md", "c", models.FileTypeMarkdown); err != nil {
		t.Errorf("Add() after remove should succeed, got %v", err)
	}
}

func TestAddBatchAtomic(t *testing.T) {
	reg := newTestRegistry(3)
	reg.Add("a.md", "a", models.FileTypeMarkdown)
	reg.Add("b.md", "b", models.FileTypeMarkdown)

	// Batch of two exceeds remaining capacity of one; nothing may be added
	_, err := reg.AddBatch([]models.FileInput{
		{Name: "c.md", Content: "c"},
		{Name: "d.md", Content: "d"},
	})
	if err == nil {
		t.Fatal("AddBatch() exceeding capacity should fail")
	}
	if !interfaces.IsKind(err, interfaces.ErrKindCapacityExceeded) {
		t.Errorf("error kind = %v, want capacity_exceeded", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d after rejected batch, want 2 (no partial add)", reg.Count())
	}

	// Exactly filling capacity succeeds
	added, err := reg.AddBatch([]models.FileInput{{Name: "c.md", Content: "c"}})
	if err != nil {
		t.Fatalf("AddBatch() within capacity failed: %v", err)
	}
	if len(added) != 1 || reg.Count() != 3 {
		t.Errorf("batch added %d files, Count() = %d, want 1 and 3", len(added), reg.Count())
	}
}

func TestUpdatePatchesOnlyGivenFields(t *testing.T) {
	reg := newTestRegistry(10)
	file, _ := reg.Add("a.md", "raw content", models.FileTypeMarkdown)

	text := "extracted"
	status := models.FileStatusReady
	if err := reg.Update(file.ID, FileUpdate{ExtractedText: &text, Status: &status}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, ok := reg.Get(file.ID)
	if !ok {
		t.Fatal("Get() after update failed")
	}
	if got.ExtractedText != "extracted" {
		t.Errorf("ExtractedText = %q", got.ExtractedText)
	}
	if got.Status != models.FileStatusReady {
		t.Errorf("Status = %q, want ready", got.Status)
	}
	if got.Content != "raw content" {
		t.Errorf("Content changed to %q, expected untouched", got.Content)
	}
}

func TestUpdateUnknownFile(t *testing.T) {
	reg := newTestRegistry(10)
	status := models.FileStatusReady
	if err := reg.Update("file_missing", FileUpdate{Status: &status}); err == nil {
		t.Error("Update() of unknown id should fail")
	}
}

func TestProjectionPrefersExtractedText(t *testing.T) {
	reg := newTestRegistry(10)
	raw, _ := reg.Add("raw.md", "raw only", models.FileTypeMarkdown)
	extracted, _ := reg.Add("ext.md", "original", models.FileTypeMarkdown)

	text := "cleaned"
	reg.Update(extracted.ID, FileUpdate{ExtractedText: &text})

	projection := reg.Projection()
	if len(projection) != 2 {
		t.Fatalf("Projection() returned %d items", len(projection))
	}

	byName := map[string]string{}
	for _, p := range projection {
		byName[p.Name] = p.Content
	}
	if byName[raw.Name] != "raw only" {
		t.Errorf("raw file projects %q", byName[raw.Name])
	}
	if byName[extracted.Name] != "cleaned" {
		t.Errorf("extracted file projects %q, want extracted text", byName[extracted.Name])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	reg := newTestRegistry(10)
	reg.Add("a.md", "a", models.FileTypeMarkdown)

	snapshot := reg.Snapshot()
	reg.Add("b.md", "b", models.FileTypeMarkdown)

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew with registry, len = %d", len(snapshot))
	}
}

func TestDetectFileTypeFromName(t *testing.T) {
	tests := []struct {
		name string
		want models.FileType
	}{
		{"readme.md", models.FileTypeMarkdown},
		{"page.html", models.FileTypeHTML},
		{"main.go", models.FileTypeCode},
		{"notes.txt", models.FileTypeText},
		{"archive.bin", models.FileTypeUnknown},
	}

	for _, tt := range tests {
		if got := models.DetectFileType(tt.name); got != tt.want {
			t.Errorf("DetectFileType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClear(t *testing.T) {
	reg := newTestRegistry(10)
	reg.Add("a.md", "a", models.FileTypeMarkdown)
	reg.Add("b.md", "b", models.FileTypeMarkdown)

	reg.Clear()
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after Clear(), want 0", reg.Count())
	}

	id := common.NewFileID()
	if _, ok := reg.Get(id); ok {
		t.Error("Get() of arbitrary id after Clear() should miss")
	}
}
