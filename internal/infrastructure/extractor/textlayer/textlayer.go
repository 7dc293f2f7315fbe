package textlayer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// Extractor reads the embedded text layer of digital PDFs without OCR.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	text, _, err := e.extract(ctx, path)
	return text, err
}

func (e *Extractor) ExtractSource(ctx context.Context, path string) (*domain.SourceDocument, error) {
	text, pages, err := e.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return &domain.SourceDocument{
		Path:     path,
		Text:     text,
		Pages:    pages,
		Metadata: map[string]string{"extractor": "textlayer"},
	}, nil
}

func (e *Extractor) extract(ctx context.Context, path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", pages, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", pages, fmt.Errorf("read page %d: %w", i, err)
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "\n\n"), pages, nil
}
