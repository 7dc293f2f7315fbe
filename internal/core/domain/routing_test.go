package domain

import (
	"errors"
	"testing"
)

func TestRouteReturnsConfiguredInstructionPerCategory(t *testing.T) {
	table := DefaultRoutingTable()
	cases := map[Category]string{
		CategoryInvoice:           "Notify Finance Department (finance@kmrl.com)",
		CategorySafetyCircular:    "Notify Operations & Safety Departments",
		CategoryHRPolicy:          "Notify Human Resources Department",
		CategoryMaintenanceReport: "Notify Engineering & Rolling Stock Depts.",
		CategoryUnclassified:      "Flag for Manual Review",
	}
	for category, want := range cases {
		if got := table.Route(string(category)); got != want {
			t.Fatalf("route(%q): expected %q, got %q", category, want, got)
		}
	}
}

func TestRouteUnknownMatchesUnclassified(t *testing.T) {
	table := DefaultRoutingTable()
	unclassified := table.Route(string(CategoryUnclassified))
	for _, label := range []string{"Purchase Order", "", "invoice", "Unclassified "} {
		if got := table.Route(label); got != unclassified {
			t.Fatalf("route(%q): expected fallback %q, got %q", label, unclassified, got)
		}
	}
}

func TestNewRoutingTableOverridesAndValidates(t *testing.T) {
	table, err := NewRoutingTable(map[string]string{"Invoice": "Notify Accounts Payable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.Route("Invoice"); got != "Notify Accounts Payable" {
		t.Fatalf("expected override, got %q", got)
	}
	if got := table.Route("HR Policy"); got != "Notify Human Resources Department" {
		t.Fatalf("expected default to survive, got %q", got)
	}

	if _, err := NewRoutingTable(map[string]string{"Purchase Order": "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown key, got %v", err)
	}
	if _, err := NewRoutingTable(map[string]string{"Invoice": "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty instruction, got %v", err)
	}
}

func TestOverridesDoNotLeakIntoDefaultTable(t *testing.T) {
	if _, err := NewRoutingTable(map[string]string{"Invoice": "mutated"}); err != nil {
		t.Fatalf("new routing table: %v", err)
	}
	if got := DefaultRoutingTable().Route("Invoice"); got == "mutated" {
		t.Fatalf("expected default table to be unaffected, got %q", got)
	}
}
