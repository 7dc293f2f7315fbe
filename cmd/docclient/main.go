package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intake/internal/client"
	"github.com/kirillkom/document-intake/internal/core/domain"
)

var (
	colorRed  = color.New(color.FgRed, color.Bold)
	colorCyan = color.New(color.FgCyan)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, client.ErrBackendUnavailable) {
			colorRed.Fprintln(os.Stderr, "Connection Error: Could not connect to the backend. Is the api server running?")
		}
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docclient",
		Short:         "Terminal client for the document intake service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a PDF, image or DOCX and show its category, routing and action items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !force && !domain.KindFromFilename(path).Supported() {
				return fmt.Errorf("%s: choose a pdf, png, jpg, jpeg or docx file (use --force to send anyway)", filepath.Base(path))
			}

			colorCyan.Fprintf(cmd.OutOrStdout(), "File uploaded: %s\nProcessing document... This may take a moment.\n\n", filepath.Base(path))
			res, err := client.New(baseURL, timeout).Analyze(cmd.Context(), path)
			if err != nil {
				return err
			}
			client.Render(cmd.OutOrStdout(), res)
			if res.Failed() {
				return errors.New("analysis failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", envOr("INTAKE_URL", client.DefaultBaseURL), "intake service base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
	cmd.Flags().BoolVar(&force, "force", false, "send files with unsupported extensions")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
