package validation

import (
	"strings"
	"testing"
)

func TestValidateContent(t *testing.T) {
	t.Cleanup(func() { SetRules(Rules{}) })

	if err := ValidateContent("hello"); err != nil {
		t.Fatalf("plain content: %v", err)
	}
	if err := ValidateContent(""); err == nil {
		t.Fatalf("empty content must fail")
	}
	if err := ValidateContent("   \t  "); err == nil {
		t.Fatalf("blank content must fail")
	}

	SetRules(Rules{MaxContentBytes: 10})
	if err := ValidateContent(strings.Repeat("x", 11)); err == nil {
		t.Fatalf("oversized content must fail")
	}
	if err := ValidateContent(strings.Repeat("x", 10)); err != nil {
		t.Fatalf("content at the limit: %v", err)
	}
}

func TestValidateName(t *testing.T) {
	t.Cleanup(func() { SetRules(Rules{}) })

	if err := ValidateName("A perfectly normal lamp"); err != nil {
		t.Fatalf("plain name: %v", err)
	}
	if err := ValidateName(""); err == nil {
		t.Fatalf("empty name must fail")
	}

	SetRules(Rules{MaxNameLen: 5})
	if err := ValidateName("toolong"); err == nil {
		t.Fatalf("oversized name must fail")
	}
}

func TestSetRulesDefaults(t *testing.T) {
	t.Cleanup(func() { SetRules(Rules{}) })

	SetRules(Rules{})
	if err := ValidateContent(strings.Repeat("x", 64*1024)); err != nil {
		t.Fatalf("default content bound: %v", err)
	}
	if err := ValidateContent(strings.Repeat("x", 64*1024+1)); err == nil {
		t.Fatalf("default content bound not enforced")
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("user-123"); err != nil {
		t.Fatalf("plain id: %v", err)
	}
	if err := ValidateUserID(""); err == nil {
		t.Fatalf("empty id must fail")
	}
	if err := ValidateUserID(strings.Repeat("x", 129)); err == nil {
		t.Fatalf("oversized id must fail")
	}
	// ":" separates storage key segments; an id carrying it could alias
	// another pair's conversation key
	for _, id := range []string{"b:i", "a b", "a\tb"} {
		if err := ValidateUserID(id); err == nil {
			t.Fatalf("id %q must fail", id)
		}
	}
}
