package setupcheck

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func find(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("result %q not found in %+v", name, results)
	return Result{}
}

func TestRunHealthySetup(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SETUPCHECK_MARKER=1\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	source := filepath.Join(dir, "data")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "a.pdf"), []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("INGEST_SOURCE_DIR", source)
	t.Setenv("ROUTING_RULES_FILE", "")
	t.Setenv("ANALYZER_MODE", "ocr")

	results := Checker{
		DotEnvPath:       envPath,
		Getenv:           func(key string) string { return map[string]string{"GOOGLE_API_KEY": "k"}[key] },
		TesseractVersion: func() (string, error) { return "5.3.0", nil },
	}.Run()

	for _, r := range results {
		if r.Level != LevelOK {
			t.Fatalf("expected all checks ok, got %+v", r)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads")); err != nil {
		t.Fatalf("upload dir should be created: %v", err)
	}
}

func TestRunReportsMissingPieces(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("INGEST_SOURCE_DIR", filepath.Join(dir, "missing"))
	t.Setenv("ANALYZER_MODE", "ocr")
	t.Setenv("ROUTING_RULES_FILE", "")

	results := Checker{
		DotEnvPath:       filepath.Join(dir, ".env"),
		Getenv:           func(string) string { return "" },
		TesseractVersion: func() (string, error) { return "", errors.New("libtesseract not found") },
	}.Run()

	if r := find(t, results, ".env"); r.Level != LevelError {
		t.Fatalf("expected .env error, got %+v", r)
	}
	if r := find(t, results, "API key"); r.Level != LevelWarn {
		t.Fatalf("expected api key warning, got %+v", r)
	}
	if r := find(t, results, "Tesseract"); r.Level != LevelError || !strings.Contains(r.Message, "libtesseract") {
		t.Fatalf("expected tesseract error, got %+v", r)
	}
	if r := find(t, results, "Source documents"); r.Level != LevelWarn {
		t.Fatalf("expected source warning, got %+v", r)
	}
}

func TestRoutingFileErrorIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	if err := os.WriteFile(path, []byte("routes:\n  Memo: Notify Nobody\n"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if r := checkRoutingFile(path); r.Level != LevelError {
		t.Fatalf("expected routing error, got %+v", r)
	}
}

func TestReportCountsErrors(t *testing.T) {
	var buf bytes.Buffer
	n := Report(&buf, []Result{
		{Name: ".env", Level: LevelOK, Message: "loaded."},
		{Name: "API key", Level: LevelWarn, Message: "missing."},
		{Name: "Tesseract", Level: LevelError, Message: "missing."},
	})
	if n != 1 {
		t.Fatalf("expected 1 error, got %d", n)
	}
	out := buf.String()
	for _, want := range []string{"✅ .env: loaded.", "⚠ WARNING: API key: missing.", "❌ ERROR: Tesseract: missing."} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
