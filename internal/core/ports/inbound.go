package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the intake request pipeline.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, filename string, body io.Reader) (*domain.AnalysisOutcome, error)
}

// DirectoryIngestor is the inbound contract for the offline ingestion batch.
type DirectoryIngestor interface {
	IngestDirectory(ctx context.Context, dir string) (*domain.IngestSummary, error)
}
