package submission

import (
	"strings"

	"civicfix_backend/internal/reports/domain"
)

const (
	// AnonymousPrefix marks descriptions filed on behalf of anonymous reporters.
	AnonymousPrefix = "[Community Report] "
	// DefaultGender is used when an authenticated reporter left gender empty.
	DefaultGender = "Male"
	// DefaultAddress fills the address box when the report has none.
	DefaultAddress = "Community reported issue"
	// DefaultAreaType is the form option used when no area type was given.
	DefaultAreaType = "Urban"
)

// DisplayView is the contact data actually typed into the form.
type DisplayView struct {
	Name        string
	Surname     string
	Email       string
	Mobile      string
	Gender      string
	District    string
	Description string
}

// NewDisplayView computes what the form sees for report. Anonymous reports
// are filed under the sentinel identity but keep their own district.
func NewDisplayView(report domain.Report, sentinel domain.SentinelIdentity) DisplayView {
	c := report.Contact
	if report.IsAnonymous {
		district := c.District
		if strings.TrimSpace(district) == "" {
			district = sentinel.District
		}
		return DisplayView{
			Name:        sentinel.Name,
			Surname:     sentinel.Surname,
			Email:       sentinel.Email,
			Mobile:      sentinel.Mobile,
			Gender:      sentinel.Gender,
			District:    district,
			Description: AnonymousPrefix + report.Description,
		}
	}

	gender := c.Gender
	if strings.TrimSpace(gender) == "" {
		gender = DefaultGender
	}
	return DisplayView{
		Name:        c.Name,
		Surname:     c.Surname,
		Email:       c.Email,
		Mobile:      c.Mobile,
		Gender:      formOption(gender),
		District:    c.District,
		Description: report.Description,
	}
}

// formOption turns a stored lower-case value into the form's visible text.
func formOption(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}
