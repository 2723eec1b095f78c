package redaction

import (
	"strings"
	"testing"
)

func TestOffIsIdentity(t *testing.T) {
	f := New()
	in := "contact admin@company.com or call 555-123-4567"
	if got := f.Redact(in, Off); got != in {
		t.Errorf("Off should be identity, got %q", got)
	}
}

func TestBasicRedactsEmailAndUserPath(t *testing.T) {
	f := New()
	out := f.Redact("Login - admin@company.com - /Users/jdoe/project", Basic)
	if !strings.Contains(out, "[EMAIL]") {
		t.Errorf("expected [EMAIL] in %q", out)
	}
	if strings.Contains(out, "admin@company.com") {
		t.Errorf("email leaked in %q", out)
	}
	if !strings.Contains(out, "/Users/[USER]") {
		t.Errorf("expected /Users/[USER] in %q", out)
	}
}

func TestStandardAddsPhoneAndCard(t *testing.T) {
	f := New()
	out := f.Redact("call 555-123-4567 or card 4111111111111111", Standard)
	if strings.Contains(out, "555-123-4567") {
		t.Errorf("phone leaked in %q", out)
	}
	if strings.Contains(out, "4111111111111111") {
		t.Errorf("card leaked in %q", out)
	}
}

func TestStrictAddsLongNumbersAndURLPaths(t *testing.T) {
	f := New()
	out := f.Redact("id 123456789 see https://example.com/secret/path", Strict)
	if strings.Contains(out, "123456789") {
		t.Errorf("long digit sequence leaked in %q", out)
	}
	if strings.Contains(out, "/secret/path") {
		t.Errorf("url path leaked in %q", out)
	}
}

func TestLevelsAreSuperset(t *testing.T) {
	f := New()
	text := "admin@company.com 123456789"
	basic := f.Redact(text, Basic)
	standard := f.Redact(text, Standard)
	strict := f.Redact(text, Strict)
	if !strings.Contains(basic, "[EMAIL]") || !strings.Contains(standard, "[EMAIL]") || !strings.Contains(strict, "[EMAIL]") {
		t.Error("email pattern should be active at Basic and above")
	}
	if strings.Contains(basic, "[NUMBER]") {
		t.Error("long-digit pattern should not be active at Basic")
	}
	if !strings.Contains(strict, "[NUMBER]") {
		t.Error("long-digit pattern should be active at Strict")
	}
}

func TestShouldExclude(t *testing.T) {
	cases := []struct {
		app  string
		want bool
	}{
		{"1Password", true},
		{"Chase Bank Mobile", true},
		{"Visual Studio Code", false},
		{"Bitwarden", true},
	}
	for _, tc := range cases {
		if got := ShouldExclude(tc.app); got != tc.want {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tc.app, got, tc.want)
		}
	}
}

