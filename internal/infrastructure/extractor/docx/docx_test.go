package docx

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Leave Policy</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Submit requests </w:t></w:r><w:r><w:t>two weeks ahead.</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Step</w:t><w:tab/><w:t>Owner</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestParagraphsJoinsWithNewlines(t *testing.T) {
	got, err := Paragraphs(documentXML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Leave Policy\nSubmit requests two weeks ahead.\n\nStep\tOwner"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParagraphsRejectsMalformedXML(t *testing.T) {
	if _, err := Paragraphs("<w:document><w:p>"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExtractFileReadsArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	_ = f.Close()

	text, err := New().ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Leave Policy\nSubmit requests two weeks ahead.\n\nStep\tOwner" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractFileDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := New().ExtractFile(context.Background(), path)
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
