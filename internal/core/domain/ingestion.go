package domain

import "time"

type IngestStatus string

const (
	IngestStatusProcessing IngestStatus = "processing"
	IngestStatusReady      IngestStatus = "ready"
	IngestStatusFailed     IngestStatus = "failed"
)

// SourceDocument is the extracted text of one batch input file.
type SourceDocument struct {
	Path     string
	Text     string
	Pages    int
	Metadata map[string]string
}

// Chunk is one overlapping window of a SourceDocument.
type Chunk struct {
	ID       string
	Index    int
	Text     string
	Metadata map[string]string
}

// EmbeddedChunk pairs a chunk with its dense vector.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// IngestRecord is the ledger row for one ingested file.
type IngestRecord struct {
	ID         string       `json:"id"`
	SourcePath string       `json:"source_path"`
	Status     IngestStatus `json:"status"`
	Pages      int          `json:"pages"`
	ChunkCount int          `json:"chunk_count"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type IngestSummary struct {
	SourceDir string
	Scanned   int
	Succeeded int
	Failed    int
	Chunks    int
	Records   []IngestRecord
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	Chunk
	Score float64
}
