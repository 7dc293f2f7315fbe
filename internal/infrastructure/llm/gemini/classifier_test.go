package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

type fakeGemini struct {
	t *testing.T

	mu            sync.Mutex
	prompts       []string
	fileParts     []fileData
	deleted       []string
	uploadedBytes int
	apiKeys       []string

	generate       func(prompt string, jsonMode bool) (int, string)
	initialState   string
	statusRequests int
}

func newFakeGemini(t *testing.T) (*fakeGemini, *httptest.Server) {
	f := &fakeGemini{t: t, initialState: fileStateActive}
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.apiKeys = append(f.apiKeys, r.Header.Get(apiKeyHeader))
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
			if r.Header.Get("X-Goog-Upload-Command") != "start" || r.Header.Get("X-Goog-Upload-Protocol") != "resumable" {
				t.Errorf("unexpected upload start headers: %v", r.Header)
			}
			w.Header().Set("X-Goog-Upload-URL", server.URL+"/upload-session/1")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/upload-session/1":
			raw, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.uploadedBytes = len(raw)
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"file": map[string]string{
				"name":     "files/abc123",
				"uri":      server.URL + "/v1beta/files/abc123",
				"mimeType": "application/pdf",
				"state":    f.initialState,
			}})
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/files/abc123":
			f.mu.Lock()
			f.statusRequests++
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{
				"name":  "files/abc123",
				"uri":   server.URL + "/v1beta/files/abc123",
				"state": fileStateActive,
			})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1beta/files/"):
			f.mu.Lock()
			f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/v1beta/"))
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":generateContent"):
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode generate request: %v", err)
			}
			var prompt strings.Builder
			f.mu.Lock()
			for _, p := range req.Contents[0].Parts {
				prompt.WriteString(p.Text)
				if p.FileData != nil {
					f.fileParts = append(f.fileParts, *p.FileData)
				}
			}
			f.prompts = append(f.prompts, prompt.String())
			f.mu.Unlock()

			jsonMode := req.GenerationConfig != nil && req.GenerationConfig.ResponseMimeType == "application/json"
			status, text := f.generate(prompt.String(), jsonMode)
			if status != http.StatusOK {
				http.Error(w, text, status)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{{
					"content":      map[string]any{"parts": []map[string]string{{"text": text}}},
					"finishReason": "STOP",
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return f, server
}

func testClient(url string) *Client {
	c := New(Config{BaseURL: url, APIKey: "test-key", Model: "gemini-test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.filePollInterval = time.Millisecond
	return c
}

func isCategoryPrompt(prompt string) bool {
	return strings.Contains(prompt, "Respond with ONLY the category name")
}

func TestTwoCallClassifierSuccess(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(prompt string, jsonMode bool) (int, string) {
		if jsonMode {
			t.Errorf("expected plain text mode")
		}
		if isCategoryPrompt(prompt) {
			return http.StatusOK, "Invoice\n"
		}
		return http.StatusOK, "- Pay invoice #123 by Friday\n\n* Confirm receipt with vendor"
	}

	result := NewTwoCallClassifier(testClient(server.URL)).ClassifyText(context.Background(), "Please pay invoice #123 by Friday.")
	if result.Failed() {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if result.PredictedCategory != domain.CategoryInvoice {
		t.Fatalf("expected Invoice, got %q", result.PredictedCategory)
	}
	want := []string{"Pay invoice #123 by Friday", "Confirm receipt with vendor"}
	if strings.Join(result.ExtractedActionItems, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, result.ExtractedActionItems)
	}
	if len(fake.prompts) != 2 {
		t.Fatalf("expected two model calls, got %d", len(fake.prompts))
	}
	for _, key := range fake.apiKeys {
		if key != "test-key" {
			t.Fatalf("expected api key header, got %q", key)
		}
	}
}

func TestTwoCallClassifierTruncatesText(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(string, bool) (int, string) { return http.StatusOK, "HR Policy" }

	long := strings.Repeat("a", 9000) + "TAIL"
	NewTwoCallClassifier(testClient(server.URL)).ClassifyText(context.Background(), long)
	for _, prompt := range fake.prompts {
		if strings.Contains(prompt, "TAIL") || strings.Count(prompt, "a") < 8000 {
			t.Fatalf("expected prompt text truncated to 8000 characters")
		}
	}
}

func TestTwoCallClassifierOutOfSetBecomesUnclassified(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(prompt string, _ bool) (int, string) {
		if isCategoryPrompt(prompt) {
			return http.StatusOK, "Purchase Order"
		}
		return http.StatusOK, NoActionItemsFound
	}

	result := NewTwoCallClassifier(testClient(server.URL)).ClassifyText(context.Background(), "PO 42")
	if result.PredictedCategory != domain.CategoryUnclassified {
		t.Fatalf("expected Unclassified, got %q", result.PredictedCategory)
	}
	if len(result.ExtractedActionItems) != 1 || result.ExtractedActionItems[0] != NoActionItemsFound {
		t.Fatalf("expected sentinel item, got %v", result.ExtractedActionItems)
	}
}

func TestTwoCallClassifierCategoryFailureKeepsActionItems(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(prompt string, _ bool) (int, string) {
		if isCategoryPrompt(prompt) {
			return http.StatusServiceUnavailable, "overloaded"
		}
		return http.StatusOK, "1. Inspect bogie 7"
	}

	result := NewTwoCallClassifier(testClient(server.URL)).ClassifyText(context.Background(), "bogie report")
	if result.Error != msgClassificationFailed || !strings.Contains(result.Details, "overloaded") {
		t.Fatalf("unexpected failure result: %+v", result)
	}
	if len(result.ExtractedActionItems) != 1 || result.ExtractedActionItems[0] != "Inspect bogie 7" {
		t.Fatalf("expected action items to be attached, got %v", result.ExtractedActionItems)
	}
}

func TestTwoCallClassifierActionItemFailure(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(prompt string, _ bool) (int, string) {
		if isCategoryPrompt(prompt) {
			return http.StatusOK, "Safety Circular"
		}
		return http.StatusInternalServerError, "boom"
	}

	result := NewTwoCallClassifier(testClient(server.URL)).ClassifyText(context.Background(), "circular")
	if result.Failed() || result.PredictedCategory != domain.CategorySafetyCircular {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.ExtractedActionItems) != 1 || result.ExtractedActionItems[0] != msgActionItemsFailed {
		t.Fatalf("expected action item error sentinel, got %v", result.ExtractedActionItems)
	}
}

func writeUpload(t *testing.T, name string, data []byte) *domain.UploadedDocument {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return &domain.UploadedDocument{Filename: name, Path: path, Kind: domain.KindFromFilename(name), Size: int64(len(data))}
}

func TestUnifiedClassifierUploadsAndDeletesFile(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.initialState = fileStateProcessing
	fake.generate = func(_ string, jsonMode bool) (int, string) {
		if !jsonMode {
			t.Errorf("expected json mode")
		}
		return http.StatusOK, "```json\n{\"predicted_category\": \"Maintenance Report\", \"extracted_action_items\": [\"Replace brake pads\"]}\n```"
	}

	uc, err := NewUnifiedClassifier(testClient(server.URL))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	doc := writeUpload(t, "report.pdf", []byte("%PDF-1.4 maintenance"))
	result := uc.ClassifyFile(context.Background(), doc)
	if result.Failed() {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if result.PredictedCategory != domain.CategoryMaintenanceReport {
		t.Fatalf("expected Maintenance Report, got %q", result.PredictedCategory)
	}
	if len(result.ExtractedActionItems) != 1 || result.ExtractedActionItems[0] != "Replace brake pads" {
		t.Fatalf("unexpected items %v", result.ExtractedActionItems)
	}
	if fake.uploadedBytes != int(doc.Size) {
		t.Fatalf("expected %d uploaded bytes, got %d", doc.Size, fake.uploadedBytes)
	}
	if fake.statusRequests == 0 {
		t.Fatalf("expected file state polling while processing")
	}
	if len(fake.fileParts) != 1 || fake.fileParts[0].MimeType != "application/pdf" {
		t.Fatalf("expected file reference in prompt, got %+v", fake.fileParts)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "files/abc123" {
		t.Fatalf("expected remote file deletion, got %v", fake.deleted)
	}
}

func TestUnifiedClassifierDeletesFileWhenGenerateFails(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(string, bool) (int, string) { return http.StatusInternalServerError, "internal" }

	uc, err := NewUnifiedClassifier(testClient(server.URL))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	result := uc.ClassifyFile(context.Background(), writeUpload(t, "scan.png", []byte{0x89, 'P', 'N', 'G'}))
	if result.Error != msgAnalysisFailed || !strings.Contains(result.Details, "internal") {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(fake.deleted) != 1 {
		t.Fatalf("expected remote cleanup on failure, got %v", fake.deleted)
	}
}

func TestUnifiedClassifierInvalidJSON(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(string, bool) (int, string) { return http.StatusOK, "Sure! It's an invoice." }

	uc, err := NewUnifiedClassifier(testClient(server.URL))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	result := uc.ClassifyText(context.Background(), "docx text")
	if result.Error != msgAnalysisFailed || result.Details == "" {
		t.Fatalf("expected parse failure with details, got %+v", result)
	}
	if len(fake.deleted) != 0 {
		t.Fatalf("text path must not touch the Files API")
	}
}

func TestUnifiedClassifierSchemaViolation(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(string, bool) (int, string) {
		return http.StatusOK, `{"predicted_category": 7, "extracted_action_items": "none"}`
	}

	uc, err := NewUnifiedClassifier(testClient(server.URL))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	result := uc.ClassifyText(context.Background(), "text")
	if !result.Failed() || !strings.Contains(result.Details, "schema") {
		t.Fatalf("expected schema failure, got %+v", result)
	}
}

func TestUnifiedClassifierNormalizesCategoryAndSendsFullText(t *testing.T) {
	fake, server := newFakeGemini(t)
	fake.generate = func(string, bool) (int, string) {
		return http.StatusOK, `{"predicted_category": "Travel Request"}`
	}

	uc, err := NewUnifiedClassifier(testClient(server.URL))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	long := strings.Repeat("b", 9000) + "TAIL"
	result := uc.ClassifyText(context.Background(), long)
	if result.PredictedCategory != domain.CategoryUnclassified {
		t.Fatalf("expected Unclassified, got %q", result.PredictedCategory)
	}
	if result.ExtractedActionItems == nil || len(result.ExtractedActionItems) != 0 {
		t.Fatalf("expected empty item list, got %#v", result.ExtractedActionItems)
	}
	if !strings.Contains(fake.prompts[0], "TAIL") {
		t.Fatalf("expected untruncated text in unified prompt")
	}
}
