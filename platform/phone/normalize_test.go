package phone

import "testing"

func TestNormalizeMobile(t *testing.T) {
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"9876543210", "9876543210", true},
		{"98765 43210", "9876543210", true},
		{"98765-43210", "9876543210", true},
		{"+91 98765 43210", "9876543210", true},
		{"09876543210", "9876543210", true},
		{"5876543210", "", false},
		{"98765", "", false},
		{"", "", false},
		{"not a number", "", false},
		{"+1 415 555 2671", "", false},
	}

	for _, tc := range cases {
		got, ok := NormalizeMobile(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizeMobile(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeE164FallsBackToInput(t *testing.T) {
	if got := NormalizeE164("  garbage  "); got != "garbage" {
		t.Fatalf("expected trimmed input, got %q", got)
	}
	if got := NormalizeE164("9876543210"); got != "+919876543210" {
		t.Fatalf("expected +919876543210, got %q", got)
	}
}
