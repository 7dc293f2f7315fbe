package setupcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/kirillkom/document-intake/internal/config"
)

type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelError
)

type Result struct {
	Name    string
	Level   Level
	Message string
}

// Checker verifies a local installation before the service or batch job is
// started. Hooks are injectable for tests.
type Checker struct {
	DotEnvPath       string
	Getenv           func(string) string
	TesseractVersion func() (string, error)
}

func (c Checker) Run() []Result {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	results := []Result{c.checkDotEnv()}
	// .env may have populated the environment, so read config afterwards.
	cfg := config.Load()

	results = append(results,
		checkAPIKey(getenv),
		c.checkTesseract(),
		checkWritableDir("Upload directory", cfg.UploadDir),
		checkSourceDir(cfg.IngestSourceDir),
		checkRoutingFile(cfg.RoutingRulesFile),
		checkAnalyzerMode(cfg.AnalyzerMode),
	)
	return results
}

func (c Checker) checkDotEnv() Result {
	path := c.DotEnvPath
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: ".env", Level: LevelError, Message: fmt.Sprintf("%s not found. Create it and add your API key.", path)}
		}
		return Result{Name: ".env", Level: LevelError, Message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	if err := config.LoadDotEnv(path); err != nil {
		return Result{Name: ".env", Level: LevelError, Message: fmt.Sprintf("error loading %s: %v", path, err)}
	}
	return Result{Name: ".env", Level: LevelOK, Message: fmt.Sprintf("%s loaded successfully.", path)}
}

func checkAPIKey(getenv func(string) string) Result {
	for _, key := range []string{"GOOGLE_API_KEY", "OPENAI_API_KEY"} {
		if strings.TrimSpace(getenv(key)) != "" {
			return Result{Name: "API key", Level: LevelOK, Message: key + " found in environment."}
		}
	}
	return Result{Name: "API key", Level: LevelWarn, Message: "no GOOGLE_API_KEY or OPENAI_API_KEY found."}
}

func (c Checker) checkTesseract() Result {
	if c.TesseractVersion == nil {
		return Result{Name: "Tesseract", Level: LevelWarn, Message: "not checked."}
	}
	version, err := c.TesseractVersion()
	if err != nil || strings.TrimSpace(version) == "" {
		msg := "tesseract library is not available."
		if err != nil {
			msg = fmt.Sprintf("tesseract library is not available: %v", err)
		}
		return Result{Name: "Tesseract", Level: LevelError, Message: msg}
	}
	return Result{Name: "Tesseract", Level: LevelOK, Message: "version " + strings.TrimSpace(version) + "."}
}

func checkWritableDir(name, dir string) Result {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: name, Level: LevelError, Message: fmt.Sprintf("cannot create %q: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".setupcheck-*")
	if err != nil {
		return Result{Name: name, Level: LevelError, Message: fmt.Sprintf("%q is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Result{Name: name, Level: LevelOK, Message: fmt.Sprintf("%q is writable.", dir)}
}

func checkSourceDir(dir string) Result {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Result{Name: "Source documents", Level: LevelWarn, Message: fmt.Sprintf("%q folder not found. Create it and add your sample files.", dir)}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.pdf"))
	upper, _ := filepath.Glob(filepath.Join(dir, "*.PDF"))
	count := len(matches) + len(upper)
	if count == 0 {
		return Result{Name: "Source documents", Level: LevelWarn, Message: fmt.Sprintf("%q exists but holds no PDF files.", dir)}
	}
	return Result{Name: "Source documents", Level: LevelOK, Message: fmt.Sprintf("%q exists with %d PDF file(s).", dir, count)}
}

func checkRoutingFile(path string) Result {
	if path == "" {
		return Result{Name: "Routing rules", Level: LevelOK, Message: "using built-in routing table."}
	}
	if _, err := config.LoadRoutingTable(path); err != nil {
		return Result{Name: "Routing rules", Level: LevelError, Message: err.Error()}
	}
	return Result{Name: "Routing rules", Level: LevelOK, Message: fmt.Sprintf("%s parsed.", path)}
}

func checkAnalyzerMode(mode string) Result {
	switch mode {
	case "ocr", "unified":
		return Result{Name: "Analyzer mode", Level: LevelOK, Message: mode + "."}
	default:
		return Result{Name: "Analyzer mode", Level: LevelError, Message: fmt.Sprintf("ANALYZER_MODE must be ocr or unified, got %q.", mode)}
	}
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
)

// Report prints one line per result and returns the number of errors.
func Report(w io.Writer, results []Result) int {
	errorsFound := 0
	for _, r := range results {
		switch r.Level {
		case LevelOK:
			okColor.Fprint(w, "✅ ")
		case LevelWarn:
			warnColor.Fprint(w, "⚠ WARNING: ")
		default:
			errColor.Fprint(w, "❌ ERROR: ")
			errorsFound++
		}
		fmt.Fprintf(w, "%s: %s\n", r.Name, r.Message)
	}
	return errorsFound
}
