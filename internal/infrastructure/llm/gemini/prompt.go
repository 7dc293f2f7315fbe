package gemini

import (
	"strings"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const (
	maxPromptChars     = 8000
	NoActionItemsFound = "No specific action items found."
)

func categoryList() string {
	quoted := make([]string, 0, len(domain.ModelCategories))
	for _, c := range domain.ModelCategories {
		quoted = append(quoted, "'"+string(c)+"'")
	}
	return strings.Join(quoted, ", ")
}

func buildCategoryPrompt(text string) string {
	return `Classify the following document into one of these categories: ` + categoryList() + `.
Respond with ONLY the category name. TEXT: ` + truncateRunes(text, maxPromptChars)
}

func buildActionItemsPrompt(text string) string {
	return `Analyze the following text and extract a bulleted list of specific action items, tasks, or deadlines.
If there are no action items, respond with '` + NoActionItemsFound + `'
TEXT: ` + truncateRunes(text, maxPromptChars)
}

const unifiedInstructions = `You are a document analyst for a metro rail operator.
Read the document and do two things:
1. Classify it into exactly one of these categories: %s. If none fits, use 'Unclassified'.
2. Extract the specific action items, tasks, or deadlines it contains.

Respond with a single JSON object with exactly two keys:
"predicted_category" (string) and "extracted_action_items" (array of strings).
Use an empty array when there are no action items. Do not add any other text.`

func buildUnifiedPrompt() string {
	return strings.Replace(unifiedInstructions, "%s", categoryList(), 1)
}

func buildUnifiedTextPrompt(text string) string {
	return buildUnifiedPrompt() + "\n\nDOCUMENT TEXT:\n" + text
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// parseActionItems splits a line-delimited answer, dropping blank lines and
// list markers.
func parseActionItems(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		item := trimListMarker(strings.TrimSpace(line))
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func trimListMarker(line string) string {
	line = strings.TrimLeft(line, "-*•· \t")
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && isDigits(line[:i]) && len(line) > i+1 && line[i+1] == ' ' {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
