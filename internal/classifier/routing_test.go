package classifier

import (
	"testing"

	"civicfix_backend/internal/reports/domain"
)

func TestDefaultRoutingTable(t *testing.T) {
	table := DefaultRoutingTable()

	cases := []struct {
		label      string
		department string
		priority   domain.Priority
	}{
		{"pothole", "Public Works", domain.PriorityHigh},
		{"potholes", "Public Works", domain.PriorityHigh},
		{"streetlight", "Public Works", domain.PriorityMedium},
		{"electric poles", "Public Works", domain.PriorityMedium},
		{"sewer", "Public Works", domain.PriorityHigh},
		{"water_supply", "Water Department", domain.PriorityUrgent},
		{"road_repair", "Public Works", domain.PriorityHigh},
		{"garbage", "Sanitation", domain.PriorityMedium},
		{"Garbage", "Sanitation", domain.PriorityMedium},
		{"other", "General", domain.PriorityMedium},
		{"flooding", "General", domain.PriorityMedium},
		{"POTHOLE", "General", domain.PriorityMedium},
		{"", "General", domain.PriorityMedium},
	}

	for _, tc := range cases {
		got := table.Route(tc.label)
		if got.Department != tc.department || got.Priority != tc.priority {
			t.Fatalf("Route(%q) = %+v, want %s/%s", tc.label, got, tc.department, tc.priority)
		}
	}

	if len(table.Categories()) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(table.Categories()))
	}
}

func TestRoutingIsCaseSensitive(t *testing.T) {
	table := DefaultRoutingTable()
	if !table.Known("garbage") || !table.Known("Garbage") {
		t.Fatal("expected both casings of garbage to be known")
	}
	if table.Known("GARBAGE") {
		t.Fatal("routing must not normalise casing")
	}
}

func TestFormOption(t *testing.T) {
	table := DefaultRoutingTable()
	cases := map[string]string{
		"pothole":        "Pothole",
		"streetlight":    "Street Light",
		"water_supply":   "Water Supply",
		"road_repair":    "Road Repair",
		"potholes":       "Other",
		"Garbage":        "Other",
		"electric poles": "Other",
		"unknown":        "Other",
	}
	for label, want := range cases {
		if got := table.FormOption(label); got != want {
			t.Fatalf("FormOption(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestCustomTableOverridesDefaults(t *testing.T) {
	table := NewRoutingTable([]Category{
		{ID: "flooding", Name: "Flooding", Department: "Drainage", Priority: domain.PriorityUrgent},
	}, nil)
	if got := table.Route("flooding"); got.Department != "Drainage" || got.Priority != domain.PriorityUrgent {
		t.Fatalf("unexpected route %+v", got)
	}
	if got := table.Route("pothole"); got.Department != "General" {
		t.Fatalf("custom table must not inherit defaults, got %+v", got)
	}
}
