package domain

import "strings"

type Category string

const (
	CategoryInvoice           Category = "Invoice"
	CategorySafetyCircular    Category = "Safety Circular"
	CategoryHRPolicy          Category = "HR Policy"
	CategoryMaintenanceReport Category = "Maintenance Report"
	CategoryUnclassified      Category = "Unclassified"
)

// Categories lists the closed category set in routing-table order.
var Categories = []Category{
	CategoryInvoice,
	CategorySafetyCircular,
	CategoryHRPolicy,
	CategoryMaintenanceReport,
	CategoryUnclassified,
}

// ModelCategories are the labels a model is asked to choose from.
var ModelCategories = Categories[:4]

// NormalizeCategory maps a raw model answer onto the closed set. Surrounding
// whitespace, quotes, markdown emphasis and a trailing period are ignored and the
// match is case-insensitive; anything else becomes Unclassified.
func NormalizeCategory(raw string) Category {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "\"'`*")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), ".")
	cleaned = strings.TrimSpace(cleaned)
	for _, c := range Categories {
		if strings.EqualFold(cleaned, string(c)) {
			return c
		}
	}
	return CategoryUnclassified
}

// ClassificationResult is what the classifier hands back. A non-empty Error marks
// an in-band failure; callers check it instead of receiving a Go error.
type ClassificationResult struct {
	PredictedCategory    Category `json:"predicted_category,omitempty"`
	ExtractedActionItems []string `json:"extracted_action_items,omitempty"`
	Error                string   `json:"error,omitempty"`
	Details              string   `json:"details,omitempty"`
}

func (r ClassificationResult) Failed() bool {
	return r.Error != ""
}

// AnalysisResponse is the success body of the intake endpoint.
type AnalysisResponse struct {
	Filename             string   `json:"filename"`
	PredictedCategory    Category `json:"predicted_category"`
	RoutingAction        string   `json:"routing_action"`
	ExtractedActionItems []string `json:"extracted_action_items"`
	TextPreview          string   `json:"text_preview,omitempty"`
}

// AnalysisOutcome is either a routed response or a passed-through classifier failure.
type AnalysisOutcome struct {
	Response *AnalysisResponse
	Failure  *ClassificationResult
}

// RoutingNotification is published to department subscribers after routing.
type RoutingNotification struct {
	RequestID     string   `json:"request_id,omitempty"`
	Filename      string   `json:"filename"`
	Category      Category `json:"category"`
	RoutingAction string   `json:"routing_action"`
	ActionItems   []string `json:"action_items"`
}
