package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// ObjectStorage keeps transient uploads on local disk.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Path(key string) string
	Delete(ctx context.Context, key string) error
}

// TextExtractor extracts plain text from a saved upload.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.UploadedDocument) (string, error)
}

// TextClassifier categorizes extracted text and pulls out action items.
// Remote failures are reported in-band through ClassificationResult.Error.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) domain.ClassificationResult
}

// FileClassifier hands the raw file to the remote model, which extracts and
// classifies in one call.
type FileClassifier interface {
	ClassifyFile(ctx context.Context, doc *domain.UploadedDocument) domain.ClassificationResult
}

// Router resolves a category to a routing instruction.
type Router interface {
	Route(category string) string
}

// RoutingNotifier tells downstream departments about a routed document.
type RoutingNotifier interface {
	NotifyRouted(ctx context.Context, n domain.RoutingNotification) error
}

// SourceExtractor turns a batch input file into text with page count.
type SourceExtractor interface {
	ExtractSource(ctx context.Context, path string) (*domain.SourceDocument, error)
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds dense vectors for chunk text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists embedded chunks. Writes append.
type VectorStore interface {
	AddChunks(ctx context.Context, chunks []domain.EmbeddedChunk) error
}

// IngestLedger records per-file ingestion progress.
type IngestLedger interface {
	Create(ctx context.Context, rec *domain.IngestRecord) error
	Finish(ctx context.Context, rec *domain.IngestRecord) error
	List(ctx context.Context, limit int) ([]domain.IngestRecord, error)
}

// VectorSearcher finds the chunks nearest to a query vector.
type VectorSearcher interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
}
