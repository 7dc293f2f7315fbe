package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/core/ports"
)

type AnalyzePolicy string

const (
	// PolicyOCR extracts text locally and asks the model for category and
	// action items in two calls.
	PolicyOCR AnalyzePolicy = "ocr"
	// PolicyUnified uploads PDFs and images to the model and asks for a single
	// JSON answer. DOCX is still extracted locally.
	PolicyUnified AnalyzePolicy = "unified"
)

const previewChars = 200

type AnalyzeDocumentUseCase struct {
	storage        ports.ObjectStorage
	extractor      ports.TextExtractor
	textClassifier ports.TextClassifier
	fileClassifier ports.FileClassifier
	router         ports.Router
	notifier       ports.RoutingNotifier
	policy         AnalyzePolicy
}

func NewAnalyzeDocumentUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	textClassifier ports.TextClassifier,
	fileClassifier ports.FileClassifier,
	router ports.Router,
	notifier ports.RoutingNotifier,
	policy AnalyzePolicy,
) *AnalyzeDocumentUseCase {
	if policy != PolicyUnified || fileClassifier == nil {
		policy = PolicyOCR
	}
	return &AnalyzeDocumentUseCase{
		storage:        storage,
		extractor:      extractor,
		textClassifier: textClassifier,
		fileClassifier: fileClassifier,
		router:         router,
		notifier:       notifier,
		policy:         policy,
	}
}

func (uc *AnalyzeDocumentUseCase) Policy() AnalyzePolicy {
	return uc.policy
}

// Analyze runs one upload through save, extract, classify and route. The saved
// upload is removed before returning on every path.
func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, filename string, body io.Reader) (*domain.AnalysisOutcome, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", errors.New("empty filename"))
	}

	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	size, err := uc.storage.Save(ctx, key, body)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	defer uc.discard(ctx, key)

	doc := &domain.UploadedDocument{
		Filename:   filename,
		StorageKey: key,
		Path:       uc.storage.Path(key),
		Kind:       domain.KindFromFilename(filename),
		Size:       size,
	}
	if !doc.Kind.Supported() {
		return nil, &domain.UnsupportedFileTypeError{Extension: strings.ToLower(filepath.Ext(filename))}
	}

	result, text, err := uc.classify(ctx, doc)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return &domain.AnalysisOutcome{Failure: &result}, nil
	}

	category := domain.NormalizeCategory(string(result.PredictedCategory))
	items := result.ExtractedActionItems
	if items == nil {
		items = []string{}
	}
	resp := &domain.AnalysisResponse{
		Filename:             filename,
		PredictedCategory:    category,
		RoutingAction:        uc.router.Route(string(category)),
		ExtractedActionItems: items,
	}
	if uc.policy == PolicyOCR {
		resp.TextPreview = preview(text)
	}

	uc.notify(ctx, resp)
	return &domain.AnalysisOutcome{Response: resp}, nil
}

func (uc *AnalyzeDocumentUseCase) classify(ctx context.Context, doc *domain.UploadedDocument) (domain.ClassificationResult, string, error) {
	if uc.policy == PolicyUnified && doc.Kind != domain.KindDOCX {
		return uc.fileClassifier.ClassifyFile(ctx, doc), "", nil
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return domain.ClassificationResult{}, "", err
	}
	return uc.textClassifier.ClassifyText(ctx, text), text, nil
}

func (uc *AnalyzeDocumentUseCase) extractText(ctx context.Context, doc *domain.UploadedDocument) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *AnalyzeDocumentUseCase) notify(ctx context.Context, resp *domain.AnalysisResponse) {
	if uc.notifier == nil {
		return
	}
	err := uc.notifier.NotifyRouted(ctx, domain.RoutingNotification{
		RequestID:     RequestIDFromContext(ctx),
		Filename:      resp.Filename,
		Category:      resp.PredictedCategory,
		RoutingAction: resp.RoutingAction,
		ActionItems:   resp.ExtractedActionItems,
	})
	if err != nil {
		slog.Warn("analyze.notify.failed",
			"request_id", RequestIDFromContext(ctx),
			"category", string(resp.PredictedCategory),
			"error", err.Error(),
		)
	}
}

func (uc *AnalyzeDocumentUseCase) discard(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.storage.Delete(cleanupCtx, key); err != nil {
		slog.Error("analyze.cleanup.failed", "storage_key", key, "error", err.Error())
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewChars {
		runes = runes[:previewChars]
	}
	return string(runes) + "..."
}
