package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewTextLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger("ingest", "warn", &buf)
	logger.Info("ingest.file.ok")
	logger.Warn("ingest.file.failed", "source", "data/a.pdf")

	out := buf.String()
	if strings.Contains(out, "ingest.file.ok") {
		t.Fatalf("info record must be filtered: %s", out)
	}
	if !strings.Contains(out, "ingest.file.failed") || !strings.Contains(out, "service=ingest") {
		t.Fatalf("expected warn record with service attr: %s", out)
	}
}

func TestNewJSONFormatCarriesService(t *testing.T) {
	var buf bytes.Buffer
	New("api", "debug", FormatJSON, &buf).Debug("analyze.ok", "category", "Invoice")

	out := buf.String()
	if !strings.Contains(out, `"service":"api"`) || !strings.Contains(out, `"msg":"analyze.ok"`) {
		t.Fatalf("unexpected json record: %s", out)
	}
}
