package domain

import (
	"fmt"
	"sort"
	"strings"
)

const FallbackRoutingAction = "Flag for Manual Review"

var defaultRoutingRules = map[Category]string{
	CategoryInvoice:           "Notify Finance Department (finance@kmrl.com)",
	CategorySafetyCircular:    "Notify Operations & Safety Departments",
	CategoryHRPolicy:          "Notify Human Resources Department",
	CategoryMaintenanceReport: "Notify Engineering & Rolling Stock Depts.",
	CategoryUnclassified:      FallbackRoutingAction,
}

// RoutingTable maps a category to a department instruction. It is immutable
// once built and safe for concurrent use.
type RoutingTable struct {
	rules map[Category]string
}

func DefaultRoutingTable() RoutingTable {
	rules := make(map[Category]string, len(defaultRoutingRules))
	for k, v := range defaultRoutingRules {
		rules[k] = v
	}
	return RoutingTable{rules: rules}
}

// NewRoutingTable overlays overrides on the default table. Keys must belong to
// the category set and instructions must be non-empty.
func NewRoutingTable(overrides map[string]string) (RoutingTable, error) {
	table := DefaultRoutingTable()
	var unknown []string
	for key, instruction := range overrides {
		category, ok := lookupCategory(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		instruction = strings.TrimSpace(instruction)
		if instruction == "" {
			return RoutingTable{}, fmt.Errorf("%w: empty routing instruction for %q", ErrInvalidInput, key)
		}
		table.rules[category] = instruction
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return RoutingTable{}, fmt.Errorf("%w: unknown routing categories: %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}
	return table, nil
}

// Route is total: any label without an entry gets the fallback instruction.
func (t RoutingTable) Route(category string) string {
	if instruction, ok := t.rules[Category(category)]; ok && instruction != "" {
		return instruction
	}
	return FallbackRoutingAction
}

func lookupCategory(key string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == key {
			return c, true
		}
	}
	return "", false
}
