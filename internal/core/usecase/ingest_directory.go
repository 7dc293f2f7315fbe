package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/core/ports"
)

const MetadataSource = "source"

type IngestDirectoryUseCase struct {
	extractor ports.SourceExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	ledger    ports.IngestLedger
	extension string
	now       func() time.Time
}

// NewIngestDirectoryUseCase wires the batch pipeline. ledger may be nil.
func NewIngestDirectoryUseCase(
	extractor ports.SourceExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	ledger ports.IngestLedger,
) *IngestDirectoryUseCase {
	return &IngestDirectoryUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		ledger:    ledger,
		extension: ".pdf",
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IngestDirectory processes every matching file directly inside dir. A file
// that fails is recorded and skipped; only infrastructure failures abort.
func (uc *IngestDirectoryUseCase) IngestDirectory(ctx context.Context, dir string) (*domain.IngestSummary, error) {
	paths, err := uc.scan(dir)
	if err != nil {
		return nil, err
	}

	summary := &domain.IngestSummary{SourceDir: dir, Scanned: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rec, err := uc.ingestFile(ctx, path)
		if err != nil {
			return summary, err
		}
		summary.Records = append(summary.Records, *rec)
		if rec.Status == domain.IngestStatusReady {
			summary.Succeeded++
			summary.Chunks += rec.ChunkCount
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

func (uc *IngestDirectoryUseCase) scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "scan source directory", err)
		}
		return nil, fmt.Errorf("scan source directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), uc.extension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

func (uc *IngestDirectoryUseCase) ingestFile(ctx context.Context, path string) (*domain.IngestRecord, error) {
	now := uc.now()
	rec := &domain.IngestRecord{
		ID:         uuid.NewString(),
		SourcePath: path,
		Status:     domain.IngestStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if uc.ledger != nil {
		if err := uc.ledger.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("create ledger record: %w", err)
		}
	}

	slog.Info("ingest.file.start", "source", path)
	chunks, pages, err := uc.pipeline(ctx, path)
	rec.Pages = pages
	rec.UpdatedAt = uc.now()
	if err != nil {
		rec.Status = domain.IngestStatusFailed
		rec.Error = err.Error()
		slog.Warn("ingest.file.failed", "source", path, "error", err.Error())
	} else {
		rec.Status = domain.IngestStatusReady
		rec.ChunkCount = chunks
		slog.Info("ingest.file.ok", "source", path, "pages", pages, "chunks", chunks)
	}

	if uc.ledger != nil {
		if err := uc.ledger.Finish(ctx, rec); err != nil {
			return nil, fmt.Errorf("finish ledger record: %w", err)
		}
	}
	return rec, nil
}

func (uc *IngestDirectoryUseCase) pipeline(ctx context.Context, path string) (int, int, error) {
	src, err := uc.extractor.ExtractSource(ctx, path)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrExtraction, "extract source", err)
	}
	if strings.TrimSpace(src.Text) == "" {
		return 0, src.Pages, domain.WrapError(domain.ErrExtraction, "extract source", errors.New("empty extracted text"))
	}

	texts := uc.chunker.Split(src.Text)
	if len(texts) == 0 {
		return 0, src.Pages, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, src.Pages, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, src.Pages, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
		)
	}

	embedded := make([]domain.EmbeddedChunk, 0, len(texts))
	for i, text := range texts {
		embedded = append(embedded, domain.EmbeddedChunk{
			Chunk: domain.Chunk{
				ID:       uuid.NewString(),
				Index:    i,
				Text:     text,
				Metadata: chunkMetadata(src, i),
			},
			Vector: vectors[i],
		})
	}

	if err := uc.vectorDB.AddChunks(ctx, embedded); err != nil {
		return 0, src.Pages, fmt.Errorf("index chunks in vector store: %w", err)
	}
	return len(embedded), src.Pages, nil
}

func chunkMetadata(src *domain.SourceDocument, index int) map[string]string {
	meta := make(map[string]string, len(src.Metadata)+2)
	for k, v := range src.Metadata {
		meta[k] = v
	}
	meta[MetadataSource] = src.Path
	meta["chunk_index"] = strconv.Itoa(index)
	return meta
}
