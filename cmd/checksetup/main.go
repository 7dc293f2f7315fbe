package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intake/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/document-intake/internal/setupcheck"
)

func main() {
	var envFile string
	cmd := &cobra.Command{
		Use:           "checksetup",
		Short:         "Verify credentials, OCR engine and folders before first run",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			color.New(color.FgCyan, color.Bold).Fprintln(out, "--- 🛠 Checking Project Setup ---")

			results := setupcheck.Checker{
				DotEnvPath:       envFile,
				Getenv:           os.Getenv,
				TesseractVersion: func() (string, error) { return ocr.Version(), nil },
			}.Run()

			errorsFound := setupcheck.Report(out, results)
			fmt.Fprintln(out)
			if errorsFound > 0 {
				return fmt.Errorf("%d check(s) failed", errorsFound)
			}
			color.New(color.FgGreen, color.Bold).Fprintln(out, "--- ✅ Setup Check Complete ---")
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to verify")

	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
