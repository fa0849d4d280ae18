// Package classifier predicts a report's category from its photo and routes
// categories to a department and priority.
package classifier

import "civicfix_backend/internal/reports/domain"

// LabelOther is the catch-all category used when nothing better is known.
const LabelOther = "other"

const (
	departmentGeneral = "General"
	formOptionOther   = "Other"
)

// Route is where a category lands.
type Route struct {
	Department string
	Priority   domain.Priority
}

// Category describes one routable label.
type Category struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Department string          `json:"department"`
	Priority   domain.Priority `json:"priority"`
}

// RoutingTable maps classifier labels to routes. Lookups are case-sensitive:
// the model emits both "garbage" and "Garbage" and each has its own entry.
type RoutingTable struct {
	categories []Category
	byLabel    map[string]Route
	formOption map[string]string
}

// NewRoutingTable builds a table from categories and the external form's
// category options. Labels without a form option submit as "Other".
func NewRoutingTable(categories []Category, formOptions map[string]string) RoutingTable {
	t := RoutingTable{
		categories: append([]Category(nil), categories...),
		byLabel:    make(map[string]Route, len(categories)),
		formOption: make(map[string]string, len(formOptions)),
	}
	for _, c := range categories {
		t.byLabel[c.ID] = Route{Department: c.Department, Priority: c.Priority}
	}
	for label, option := range formOptions {
		t.formOption[label] = option
	}
	return t
}

// DefaultRoutingTable returns the labels the deployed model is known to emit.
func DefaultRoutingTable() RoutingTable {
	return NewRoutingTable([]Category{
		{ID: "pothole", Name: "Pothole", Department: "Public Works", Priority: domain.PriorityHigh},
		{ID: "potholes", Name: "Potholes", Department: "Public Works", Priority: domain.PriorityHigh},
		{ID: "streetlight", Name: "Street Light", Department: "Public Works", Priority: domain.PriorityMedium},
		{ID: "electric poles", Name: "Electric Poles", Department: "Public Works", Priority: domain.PriorityMedium},
		{ID: "sewer", Name: "Sewer Issue", Department: "Public Works", Priority: domain.PriorityHigh},
		{ID: "garbage", Name: "Garbage Collection", Department: "Sanitation", Priority: domain.PriorityMedium},
		{ID: "Garbage", Name: "Garbage", Department: "Sanitation", Priority: domain.PriorityMedium},
		{ID: "water_supply", Name: "Water Supply", Department: "Water Department", Priority: domain.PriorityUrgent},
		{ID: "road_repair", Name: "Road Repair", Department: "Public Works", Priority: domain.PriorityHigh},
		{ID: LabelOther, Name: "Other", Department: departmentGeneral, Priority: domain.PriorityMedium},
	}, map[string]string{
		"pothole":      "Pothole",
		"garbage":      "Garbage",
		"streetlight":  "Street Light",
		"water_supply": "Water Supply",
		"sewer":        "Sewer",
		"road_repair":  "Road Repair",
		LabelOther:     "Other",
	})
}

// Route returns the department and priority for label. Unknown labels go to
// General with medium priority.
func (t RoutingTable) Route(label string) Route {
	if r, ok := t.byLabel[label]; ok {
		return r
	}
	return Route{Department: departmentGeneral, Priority: domain.PriorityMedium}
}

// Known reports whether label has its own entry.
func (t RoutingTable) Known(label string) bool {
	_, ok := t.byLabel[label]
	return ok
}

// FormOption returns the external form's category option for label.
func (t RoutingTable) FormOption(label string) string {
	if option, ok := t.formOption[label]; ok {
		return option
	}
	return formOptionOther
}

// Categories returns the table entries in declaration order.
func (t RoutingTable) Categories() []Category {
	return append([]Category(nil), t.categories...)
}

// Labels returns every known label.
func (t RoutingTable) Labels() []string {
	labels := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		labels = append(labels, c.ID)
	}
	return labels
}
