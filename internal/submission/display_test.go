package submission

import (
	"strings"
	"testing"

	"civicfix_backend/internal/reports/domain"
)

func TestDisplayViewAnonymousUsesSentinel(t *testing.T) {
	r := readyReport(0)
	r.IsAnonymous = true
	r.Contact = testSentinelContact()
	r.Contact.District = "Gwalior"

	view := NewDisplayView(r, testSentinel)

	if view.Name != testSentinel.Name || view.Surname != testSentinel.Surname {
		t.Fatalf("expected sentinel name, got %q %q", view.Name, view.Surname)
	}
	if view.Email != testSentinel.Email || view.Mobile != testSentinel.Mobile {
		t.Fatalf("expected sentinel contact, got %q %q", view.Email, view.Mobile)
	}
	if view.District != "Gwalior" {
		t.Fatalf("expected report district to be kept, got %q", view.District)
	}
	if !strings.HasPrefix(view.Description, AnonymousPrefix) {
		t.Fatalf("expected anonymised description, got %q", view.Description)
	}
}

func TestDisplayViewAnonymousDistrictFallback(t *testing.T) {
	r := readyReport(0)
	r.IsAnonymous = true
	r.Contact.District = "  "

	if got := NewDisplayView(r, testSentinel).District; got != testSentinel.District {
		t.Fatalf("expected sentinel district, got %q", got)
	}
}

func TestDisplayViewAuthenticated(t *testing.T) {
	r := readyReport(0)
	view := NewDisplayView(r, testSentinel)

	if view.Name != "Asha" || view.Mobile != "9876543210" {
		t.Fatalf("expected reporter's own contact, got %+v", view)
	}
	if view.Gender != "Female" {
		t.Fatalf("expected form option casing, got %q", view.Gender)
	}
	if view.Description != r.Description {
		t.Fatalf("description must pass through, got %q", view.Description)
	}

	r.Contact.Gender = ""
	if got := NewDisplayView(r, testSentinel).Gender; got != DefaultGender {
		t.Fatalf("expected default gender, got %q", got)
	}
}

func testSentinelContact() domain.Contact {
	return domain.Contact{
		Name:    testSentinel.Name,
		Surname: testSentinel.Surname,
		Email:   testSentinel.Email,
	}
}
