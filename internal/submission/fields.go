package submission

import (
	"fmt"

	"civicfix_backend/internal/classifier"
	"civicfix_backend/internal/reports/domain"
)

// Form input names.
const (
	FieldMobile      = "mobile"
	FieldName        = "name"
	FieldSurname     = "surname"
	FieldEmail       = "email"
	FieldGender      = "gender"
	FieldDistrict    = "district"
	FieldBlock       = "block"
	FieldAddress     = "address"
	FieldAreaType    = "type"
	FieldDepartment  = "department"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldFile        = "file"
)

// FieldPolicy decides which field failures abort an attempt.
type FieldPolicy struct {
	required map[string]struct{}
}

// NewFieldPolicy returns a policy requiring the given fields.
func NewFieldPolicy(required ...string) FieldPolicy {
	p := FieldPolicy{required: make(map[string]struct{}, len(required))}
	for _, f := range required {
		p.required[f] = struct{}{}
	}
	return p
}

// DefaultFieldPolicy requires the contact fields and the description.
func DefaultFieldPolicy() FieldPolicy {
	return NewFieldPolicy(FieldMobile, FieldName, FieldSurname, FieldEmail, FieldDistrict, FieldDescription)
}

// Required reports whether a failure on field aborts the attempt.
func (p FieldPolicy) Required(field string) bool {
	_, ok := p.required[field]
	return ok
}

// FieldResult is the outcome of one field operation. Err is nil on success.
type FieldResult struct {
	Field string
	Err   error
}

// OK reports whether the operation succeeded.
func (r FieldResult) OK() bool { return r.Err == nil }

func (r FieldResult) String() string {
	if r.Err == nil {
		return r.Field + ": ok"
	}
	return fmt.Sprintf("%s: %v", r.Field, r.Err)
}

type stepKind int

const (
	stepFill stepKind = iota
	stepSelect
)

type fieldStep struct {
	field string
	kind  stepKind
	value string
}

// fieldPlan lists the form operations for one attempt in page order.
// The file attachment is handled separately since it needs a staged path.
func fieldPlan(report domain.Report, view DisplayView, table classifier.RoutingTable) []fieldStep {
	address := report.Contact.Address
	if address == "" {
		address = DefaultAddress
	}
	areaType := formOption(report.Contact.AreaType)
	if areaType == "" {
		areaType = DefaultAreaType
	}

	return []fieldStep{
		{field: FieldMobile, kind: stepFill, value: view.Mobile},
		{field: FieldName, kind: stepFill, value: view.Name},
		{field: FieldSurname, kind: stepFill, value: view.Surname},
		{field: FieldEmail, kind: stepFill, value: view.Email},
		{field: FieldGender, kind: stepSelect, value: view.Gender},
		{field: FieldDistrict, kind: stepFill, value: view.District},
		{field: FieldBlock, kind: stepFill, value: report.Contact.BlockName},
		{field: FieldAddress, kind: stepFill, value: address},
		{field: FieldAreaType, kind: stepSelect, value: areaType},
		{field: FieldDepartment, kind: stepFill, value: report.Department},
		{field: FieldCategory, kind: stepSelect, value: table.FormOption(report.Category)},
		{field: FieldDescription, kind: stepFill, value: view.Description},
	}
}
