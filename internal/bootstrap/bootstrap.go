package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-intake/internal/config"
	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/core/ports"
	"github.com/kirillkom/document-intake/internal/core/usecase"
	"github.com/kirillkom/document-intake/internal/infrastructure/chunking"
	"github.com/kirillkom/document-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/document-intake/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/document-intake/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/document-intake/internal/infrastructure/extractor/textlayer"
	"github.com/kirillkom/document-intake/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/document-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-intake/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/document-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/document-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-intake/internal/infrastructure/vector/qdrant"
	vectorsqlite "github.com/kirillkom/document-intake/internal/infrastructure/vector/sqlite"
	"github.com/kirillkom/document-intake/internal/observability/metrics"
)

const ledgerFileName = "ingest_ledger.db"

// API holds the wired intake service.
type API struct {
	Config   config.Config
	Analyzer *usecase.AnalyzeDocumentUseCase
	Metrics  *metrics.IntakeMetrics
	Routing  domain.RoutingTable

	closeFn func()
}

func NewAPI(_ context.Context, cfg config.Config) (*API, error) {
	httpMetrics := metrics.NewIntakeMetrics("api")

	routing, err := config.LoadRoutingTable(cfg.RoutingRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load routing table: %w", err)
	}

	storage, err := localfs.New(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	ocrExtractor := ocr.New(ocrConfig(cfg))
	dispatcher := extractor.NewDispatcher(
		extractor.StrategyFunc(ocrExtractor.ExtractPDF),
		extractor.StrategyFunc(ocrExtractor.ExtractImage),
		docx.New(),
	)

	geminiClient := gemini.New(gemini.Config{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GoogleAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: time.Duration(cfg.GeminiTimeoutS) * time.Second,
	}, slog.Default())

	var (
		textClassifier ports.TextClassifier
		fileClassifier ports.FileClassifier
	)
	policy := usecase.AnalyzePolicy(cfg.AnalyzerMode)
	if policy == usecase.PolicyUnified {
		unified, err := gemini.NewUnifiedClassifier(geminiClient)
		if err != nil {
			return nil, fmt.Errorf("init unified classifier: %w", err)
		}
		textClassifier = unified
		fileClassifier = unified
	} else {
		textClassifier = gemini.NewTwoCallClassifier(geminiClient)
	}

	closers := []func(){}
	var notifier ports.RoutingNotifier
	if cfg.NATSURL != "" {
		policy := resilience.NotifyPolicy()
		policy.Observer = httpMetrics
		natsNotifier, err := nats.NewWithOptions(cfg.NATSURL, cfg.RoutingSubjectPrefix, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(policy),
		})
		if err != nil {
			return nil, fmt.Errorf("init routing notifier: %w", err)
		}
		closers = append(closers, natsNotifier.Close)
		notifier = &observedNotifier{next: natsNotifier, metrics: httpMetrics, service: "api"}
	}

	analyzer := usecase.NewAnalyzeDocumentUseCase(
		storage,
		dispatcher,
		textClassifier,
		fileClassifier,
		routing,
		notifier,
		policy,
	)
	slog.Info("bootstrap.api.ready",
		"policy", string(analyzer.Policy()),
		"model", geminiClient.Model(),
		"upload_dir", cfg.UploadDir,
		"notifications", notifier != nil,
	)

	return &API{
		Config:   cfg,
		Analyzer: analyzer,
		Metrics:  httpMetrics,
		Routing:  routing,
		closeFn: func() {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Ingest holds the wired batch job and the handles its subcommands need.
type Ingest struct {
	Config   config.Config
	UseCase  ports.DirectoryIngestor
	Embedder ports.Embedder
	Searcher ports.VectorSearcher
	Ledger   *sqlstore.IngestRepository

	closeFn func()
}

func NewIngest(ctx context.Context, cfg config.Config) (*Ingest, error) {
	var source ports.SourceExtractor
	switch cfg.IngestTextMode {
	case "textlayer":
		source = textlayer.New()
	default:
		source = ocr.New(ocrConfig(cfg))
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.EmbedPolicy()),
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		store    ports.VectorStore
		searcher ports.VectorSearcher
	)
	switch cfg.VectorBackend {
	case "qdrant":
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
		store, searcher = client, client
	default:
		sqliteStore, err := vectorsqlite.Open(ctx, cfg.VectorStoreDir)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		closers = append(closers, func() { _ = sqliteStore.Close() })
		store, searcher = sqliteStore, sqliteStore
		slog.Info("bootstrap.ingest.vector_store", "backend", "sqlite", "path", sqliteStore.Path())
	}

	dsn := cfg.LedgerDSN
	if dsn == "" {
		dsn = filepath.Join(cfg.VectorStoreDir, ledgerFileName)
	}
	db, dialect, err := sqlstore.OpenDB(dsn)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open ingest ledger: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	ledger := sqlstore.NewIngestRepository(db, dialect)
	if err := ledger.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}

	return &Ingest{
		Config:   cfg,
		UseCase:  usecase.NewIngestDirectoryUseCase(source, chunker, embedder, store, ledger),
		Embedder: embedder,
		Searcher: searcher,
		Ledger:   ledger,
		closeFn:  closeAll,
	}, nil
}

func (i *Ingest) Close() {
	if i.closeFn != nil {
		i.closeFn()
	}
}

func ocrConfig(cfg config.Config) ocr.Config {
	var langs []string
	for _, lang := range strings.FieldsFunc(cfg.OCRLanguages, func(r rune) bool { return r == '+' || r == ',' }) {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	return ocr.Config{DPI: float64(cfg.OCRDPI), Languages: langs}
}

type observedNotifier struct {
	next    ports.RoutingNotifier
	metrics *metrics.IntakeMetrics
	service string
}

func (n *observedNotifier) NotifyRouted(ctx context.Context, msg domain.RoutingNotification) error {
	err := n.next.NotifyRouted(ctx, msg)
	n.metrics.RecordNotification(n.service, err)
	return err
}
