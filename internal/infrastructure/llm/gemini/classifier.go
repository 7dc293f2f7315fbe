package gemini

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const (
	msgClassificationFailed = "Classification failed."
	msgActionItemsFailed    = "Error extracting action items."
	msgAnalysisFailed       = "Failed to analyze document with AI."
)

// TwoCallClassifier asks for the category and the action items in separate
// calls on the first 8000 characters of text.
type TwoCallClassifier struct {
	client *Client
}

func NewTwoCallClassifier(client *Client) *TwoCallClassifier {
	return &TwoCallClassifier{client: client}
}

func (c *TwoCallClassifier) ClassifyText(ctx context.Context, text string) domain.ClassificationResult {
	start := time.Now()
	c.client.log.Info("llm.classify.start", "mode", "ocr", "model", c.client.model, "text_len", len(text))

	var result domain.ClassificationResult
	raw, catErr := c.client.generate(ctx, []part{{Text: buildCategoryPrompt(text)}}, false)
	if catErr != nil {
		c.client.log.Error("llm.classify.category_error", "error", catErr.Error())
		result.Error = msgClassificationFailed
		result.Details = catErr.Error()
	} else {
		result.PredictedCategory = domain.NormalizeCategory(raw)
	}

	itemsRaw, err := c.client.generate(ctx, []part{{Text: buildActionItemsPrompt(text)}}, false)
	if err != nil {
		c.client.log.Error("llm.classify.action_items_error", "error", err.Error())
		result.ExtractedActionItems = []string{msgActionItemsFailed}
	} else {
		result.ExtractedActionItems = parseActionItems(itemsRaw)
	}

	c.client.log.Info("llm.classify.done",
		"mode", "ocr",
		"category", string(result.PredictedCategory),
		"action_items", len(result.ExtractedActionItems),
		"failed", result.Failed(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// UnifiedClassifier asks for one JSON object holding both fields. Files are
// uploaded to the Files API and the remote copy is always deleted afterwards.
type UnifiedClassifier struct {
	client *Client
	schema *jsonschema.Schema
}

func NewUnifiedClassifier(client *Client) (*UnifiedClassifier, error) {
	schema, err := compileAnalysisSchema()
	if err != nil {
		return nil, err
	}
	return &UnifiedClassifier{client: client, schema: schema}, nil
}

// ClassifyText sends the full text without truncation.
func (c *UnifiedClassifier) ClassifyText(ctx context.Context, text string) domain.ClassificationResult {
	start := time.Now()
	c.client.log.Info("llm.classify.start", "mode", "unified", "model", c.client.model, "text_len", len(text))
	return c.analyze(ctx, []part{{Text: buildUnifiedTextPrompt(text)}}, start)
}

func (c *UnifiedClassifier) ClassifyFile(ctx context.Context, doc *domain.UploadedDocument) domain.ClassificationResult {
	start := time.Now()
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return failure(msgAnalysisFailed, fmt.Errorf("read upload: %w", err))
	}
	mimeType := detectMIME(data, doc.Filename)
	c.client.log.Info("llm.classify.start",
		"mode", "unified",
		"model", c.client.model,
		"filename", doc.Filename,
		"mime_type", mimeType,
		"bytes", len(data),
	)

	file, err := c.client.uploadFile(ctx, data, doc.Filename, mimeType)
	if file != nil && file.Name != "" {
		defer c.cleanup(ctx, file.Name)
	}
	if err != nil {
		c.client.log.Error("llm.upload.error", "filename", doc.Filename, "error", err.Error())
		return failure(msgAnalysisFailed, err)
	}

	parts := []part{
		{FileData: &fileData{MimeType: file.MimeType, FileURI: file.URI}},
		{Text: buildUnifiedPrompt()},
	}
	return c.analyze(ctx, parts, start)
}

func (c *UnifiedClassifier) analyze(ctx context.Context, parts []part, start time.Time) domain.ClassificationResult {
	raw, err := c.client.generate(ctx, parts, true)
	if err != nil {
		c.client.log.Error("llm.classify.http_error", "error", err.Error(), "elapsed_ms", time.Since(start).Milliseconds())
		return failure(msgAnalysisFailed, err)
	}

	answer, err := decodeUnifiedAnswer(c.schema, raw)
	if err != nil {
		c.client.log.Error("llm.classify.parse_error", "error", err.Error(), "raw_len", len(raw))
		return failure(msgAnalysisFailed, err)
	}

	items := answer.ExtractedActionItems
	if items == nil {
		items = []string{}
	}
	result := domain.ClassificationResult{
		PredictedCategory:    domain.NormalizeCategory(answer.PredictedCategory),
		ExtractedActionItems: items,
	}
	c.client.log.Info("llm.classify.done",
		"mode", "unified",
		"category", string(result.PredictedCategory),
		"raw_category", answer.PredictedCategory,
		"action_items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result
}

func (c *UnifiedClassifier) cleanup(ctx context.Context, name string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := c.client.deleteFile(cleanupCtx, name); err != nil {
		c.client.log.Warn("llm.file.delete_error", "file", name, "error", err.Error())
		return
	}
	c.client.log.Debug("llm.file.deleted", "file", name)
}

func failure(message string, err error) domain.ClassificationResult {
	return domain.ClassificationResult{Error: message, Details: err.Error()}
}
