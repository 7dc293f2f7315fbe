package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const (
	filesSheet   = "Files"
	summarySheet = "Summary"
)

// WriteIngestReport renders an ingestion summary as a two-sheet workbook:
// per-file results and run totals.
func WriteIngestReport(w io.Writer, summary *domain.IngestSummary) error {
	if summary == nil {
		return fmt.Errorf("ingest report: nil summary")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", filesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	headers := []string{"Source", "Status", "Pages", "Chunks", "Error", "Started", "Finished"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(filesSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(filesSheet, "A1", "G1", style)
		_ = f.SetCellStyle(summarySheet, "A1", "A5", style)
	}

	for i, rec := range summary.Records {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(filesSheet, cell, v)
		}
		write(1, rec.SourcePath)
		write(2, string(rec.Status))
		write(3, rec.Pages)
		write(4, rec.ChunkCount)
		write(5, rec.Error)
		write(6, rec.CreatedAt.Format("2006-01-02 15:04:05"))
		write(7, rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	_ = f.SetColWidth(filesSheet, "A", "A", 48)
	_ = f.SetColWidth(filesSheet, "B", "D", 12)
	_ = f.SetColWidth(filesSheet, "E", "E", 60)
	_ = f.SetColWidth(filesSheet, "F", "G", 20)

	totals := [][2]any{
		{"Source directory", summary.SourceDir},
		{"Files scanned", summary.Scanned},
		{"Succeeded", summary.Succeeded},
		{"Failed", summary.Failed},
		{"Chunks stored", summary.Chunks},
	}
	for i, kv := range totals {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
