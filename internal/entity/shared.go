package entity

import (
	"strings"
	"unicode"
)

// Language is an ISO 639-1 code of a material or word.
type Language string

const (
	LanguageUnspecified Language = ""
	LanguageEnglish     Language = "en"
	LanguageChinese     Language = "zh"
	LanguageSpanish     Language = "es"
	LanguageFrench      Language = "fr"
	LanguageGerman      Language = "de"
	LanguageJapanese    Language = "ja"
	LanguageKorean      Language = "ko"
)

var knownLanguages = map[Language]struct{}{
	LanguageEnglish:  {},
	LanguageChinese:  {},
	LanguageSpanish:  {},
	LanguageFrench:   {},
	LanguageGerman:   {},
	LanguageJapanese: {},
	LanguageKorean:   {},
}

// CodeOrDefault returns the language code, English when unspecified.
func (l Language) CodeOrDefault() string {
	if code := strings.TrimSpace(string(l)); code != "" {
		return code
	}
	return string(LanguageEnglish)
}

// NormalizeLanguage maps unknown languages to English.
func NormalizeLanguage(lang Language) Language {
	if _, ok := knownLanguages[lang]; ok {
		return lang
	}
	return LanguageEnglish
}

// ParseLanguage accepts codes such as "EN" or "en-US"; anything unknown is unspecified.
func ParseLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, _, ok := strings.Cut(code, "-"); ok {
		code = base
	}
	lang := Language(code)
	if _, ok := knownLanguages[lang]; ok {
		return lang
	}
	return LanguageUnspecified
}

// NormalizeWordToken lowercases a transcript token and strips surrounding
// punctuation, so "Hello," and "hello" share one word row. Inner
// apostrophes and hyphens are kept.
func NormalizeWordToken(word string) string {
	trimmed := strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.ToLower(trimmed)
}
