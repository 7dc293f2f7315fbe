package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intake/internal/bootstrap"
	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/document-intake/internal/observability/metrics"
)

func newRunCmd() *cobra.Command {
	var (
		sourceDir       string
		reportPath      string
		metricsTextfile string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "OCR, chunk, embed and store every PDF in the source directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if sourceDir == "" {
				sourceDir = cfg.IngestSourceDir
			}

			app, err := bootstrap.NewIngest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			colorCyan.Printf("Loading documents from %s\n", sourceDir)
			summary, err := app.UseCase.IngestDirectory(cmd.Context(), sourceDir)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", sourceDir, err)
			}
			if summary.Scanned == 0 {
				colorYellow.Println("No PDF documents found")
				return nil
			}

			printSummary(summary)

			if reportPath != "" {
				if err := writeReport(reportPath, summary); err != nil {
					return err
				}
				colorCyan.Printf("Report written to %s\n", reportPath)
			}
			if metricsTextfile != "" {
				m := metrics.NewIngestMetrics("ingest")
				m.ObserveSummary("ingest", summary, time.Now())
				if err := m.WriteTextfile(metricsTextfile); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceDir, "dir", "", "source directory (default INGEST_SOURCE_DIR)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an XLSX summary to this path")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus textfile metrics to this path")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the vector store with free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewIngest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			vectors, err := app.Embedder.Embed(cmd.Context(), []string{query})
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			if len(vectors) != 1 {
				return fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
			}
			hits, err := app.Searcher.Search(cmd.Context(), vectors[0], limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				colorYellow.Println("No matching chunks")
				return nil
			}
			for i, hit := range hits {
				colorGreen.Printf("%d. %.3f  %s #%d\n", i+1, hit.Score, hit.Metadata["source"], hit.Index)
				fmt.Printf("   %s\n", snippet(hit.Text, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of chunks to return")
	return cmd
}

func newLedgerCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recently ingested files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewIngest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				printRecord(rec)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records to show")
	return cmd
}

func printSummary(summary *domain.IngestSummary) {
	for _, rec := range summary.Records {
		printRecord(rec)
	}
	fmt.Println()
	fmt.Printf("Files: %d  ok: %d  failed: %d  chunks: %d\n", summary.Scanned, summary.Succeeded, summary.Failed, summary.Chunks)
	if summary.Failed == 0 {
		colorGreen.Println("Ingestion complete")
	} else {
		colorYellow.Println("Ingestion finished with failures")
	}
}

func printRecord(rec domain.IngestRecord) {
	switch rec.Status {
	case domain.IngestStatusReady:
		colorGreen.Printf("✅ %s", rec.SourcePath)
		fmt.Printf("  pages=%d chunks=%d\n", rec.Pages, rec.ChunkCount)
	case domain.IngestStatusFailed:
		colorRed.Printf("❌ %s", rec.SourcePath)
		fmt.Printf("  %s\n", rec.Error)
	default:
		colorYellow.Printf("⚠ %s", rec.SourcePath)
		fmt.Printf("  %s\n", rec.Status)
	}
}

func writeReport(path string, summary *domain.IngestSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := xlsx.WriteIngestReport(f, summary); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
