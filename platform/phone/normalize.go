// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "IN"

var indianMobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NormalizeMobile returns the 10-digit national form of an Indian mobile
// number. Spaces, dashes and a +91 or 0 prefix are accepted. The second
// return value is false when the input is not a valid mobile number.
func NormalizeMobile(input string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(input))
	if cleaned == "" {
		return "", false
	}

	number, err := phonenumbers.Parse(cleaned, defaultRegion)
	if err != nil {
		return "", false
	}
	if number.GetCountryCode() != 91 {
		return "", false
	}

	national := phonenumbers.GetNationalSignificantNumber(number)
	if !indianMobilePattern.MatchString(national) {
		return "", false
	}
	return national, true
}
