package client

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	valueColor   = color.New(color.Bold)
)

// Render prints an analysis result in the order an operator reads it:
// category, routing, then action items.
func Render(w io.Writer, r *Result) {
	if r.Failed() {
		errorColor.Fprintf(w, "An error occurred: %s\n", r.Error)
		if r.Details != "" {
			fmt.Fprintf(w, "Details: %s\n", r.Details)
		}
		if len(r.ActionItems) > 0 {
			headingColor.Fprintln(w, "\nExtracted Action Items")
			renderItems(w, r.ActionItems)
		}
		return
	}

	successColor.Fprintln(w, "Analysis Complete!")

	headingColor.Fprintln(w, "\nDocument Category")
	valueColor.Fprintln(w, orNA(r.PredictedCategory))

	headingColor.Fprintln(w, "\nRecommended Routing")
	fmt.Fprintln(w, orNA(r.RoutingAction))

	headingColor.Fprintln(w, "\nExtracted Action Items")
	renderItems(w, r.ActionItems)

	if r.TextPreview != "" {
		headingColor.Fprintln(w, "\nText Preview")
		fmt.Fprintln(w, r.TextPreview)
	}
}

func renderItems(w io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No action items found.")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
