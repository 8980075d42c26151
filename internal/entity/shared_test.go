package entity

import "testing"

func TestNormalizeWordToken(t *testing.T) {
	cases := map[string]string{
		"  Hello, ":   "hello",
		"\"don't\"":   "don't",
		"well-known.": "well-known",
		"...":         "",
		"":            "",
	}
	for in, want := range cases {
		if got := NormalizeWordToken(in); got != want {
			t.Errorf("NormalizeWordToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	if got := ParseLanguage("EN-us"); got != LanguageEnglish {
		t.Fatalf("expected en, got %q", got)
	}
	if got := ParseLanguage("xx"); got != LanguageUnspecified {
		t.Fatalf("expected unspecified, got %q", got)
	}
	if got := NormalizeLanguage(LanguageUnspecified); got != LanguageEnglish {
		t.Fatalf("expected fallback to en, got %q", got)
	}
}
