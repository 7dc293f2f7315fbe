package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const DefaultDPI = 300

// Engine recognizes text in one encoded raster image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Renderer rasterizes each page of a PDF in order and hands the encoded image
// to fn. It returns the page count.
type Renderer interface {
	RenderPages(ctx context.Context, path string, dpi float64, fn func(page int, image []byte) error) (int, error)
}

type Config struct {
	DPI       float64
	Languages []string
}

// Extractor OCRs images directly and PDFs page by page.
type Extractor struct {
	cfg      Config
	renderer Renderer
	engine   Engine
}

// New builds an extractor backed by MuPDF and Tesseract.
func New(cfg Config) *Extractor {
	return NewWithBackends(cfg, FitzRenderer{}, &Tesseract{Languages: cfg.Languages})
}

func NewWithBackends(cfg Config, renderer Renderer, engine Engine) *Extractor {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Extractor{cfg: cfg, renderer: renderer, engine: engine}
}

// ExtractImage OCRs a PNG or JPEG file.
func (e *Extractor) ExtractImage(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	text, err := e.engine.Recognize(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	return text, nil
}

// ExtractPDF renders every page and concatenates page text in page order.
func (e *Extractor) ExtractPDF(ctx context.Context, path string) (string, error) {
	text, _, err := e.extractPDF(ctx, path)
	return text, err
}

// ExtractSource satisfies the ingestion batch's source extractor.
func (e *Extractor) ExtractSource(ctx context.Context, path string) (*domain.SourceDocument, error) {
	text, pages, err := e.extractPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	return &domain.SourceDocument{
		Path:     path,
		Text:     text,
		Pages:    pages,
		Metadata: map[string]string{"extractor": "ocr"},
	}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, int, error) {
	var sb strings.Builder
	pages, err := e.renderer.RenderPages(ctx, path, e.cfg.DPI, func(page int, image []byte) error {
		text, err := e.engine.Recognize(ctx, image)
		if err != nil {
			return fmt.Errorf("ocr page %d: %w", page+1, err)
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
		return nil
	})
	if err != nil {
		return "", pages, err
	}
	return sb.String(), pages, nil
}
