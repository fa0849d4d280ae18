package domain

import "testing"

func TestStatusSubmittable(t *testing.T) {
	cases := map[Status]bool{
		StatusUnsubmitted: false,
		StatusReady:       true,
		StatusFailed:      true,
		StatusSubmitted:   false,
		Status("pending"): false,
	}
	for status, want := range cases {
		if got := status.Submittable(); got != want {
			t.Fatalf("%s.Submittable() = %v, want %v", status, got, want)
		}
	}
	if Status("pending").Valid() {
		t.Fatal("unknown status must not be valid")
	}
}

func TestSentinelMatchesExactly(t *testing.T) {
	s := SentinelIdentity{Name: "CivicFix", Surname: "Support", Email: "support@civicfix.org"}
	if !s.Matches("CivicFix", "Support", "support@civicfix.org") {
		t.Fatal("expected exact sentinel to match")
	}
	if s.Matches("civicfix", "Support", "support@civicfix.org") {
		t.Fatal("casing difference must not match")
	}
	if s.Matches("CivicFix", "Support", "support@civicfix.org ") {
		t.Fatal("whitespace difference must not match")
	}
}
