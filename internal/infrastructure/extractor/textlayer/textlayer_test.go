package textlayer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("plain text, no xref"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New().ExtractSource(context.Background(), path); err == nil {
		t.Fatalf("expected open error for non-pdf content")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := New().ExtractFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
