// Package nlp provides text normalization for requirement analysis:
// tokenization, sentence segmentation, and named-entity detection
// (organizations, quantities, dates, condition markers).
//
// All analysis state lives in an immutable Language context constructed once
// at startup and passed by reference into every call. There is no package
// global; tests construct their own context.
package nlp

import (
	"regexp"

	"github.com/reqlens/reqlens/internal/errors"
)

// Language is the read-only linguistic context shared by all normalizer
// calls. Safe for concurrent use once constructed.
type Language struct {
	tokenPattern    *regexp.Regexp
	quantityPattern *regexp.Regexp
	datePattern     *regexp.Regexp

	conditionMarkers map[string]struct{}
	orgSuffixes      map[string]struct{}
	quantityUnits    map[string]struct{}
	stopWords        map[string]struct{}
}

// conditionMarkerWords signal conditional constructions in requirement text.
var conditionMarkerWords = []string{
	"if", "when", "whenever", "unless", "until", "provided", "where", "while",
}

// orgSuffixWords terminate an organization name.
var orgSuffixWords = []string{
	"inc", "corp", "corporation", "llc", "ltd", "bank", "agency",
	"authority", "department", "bureau", "commission",
}

// quantityUnitWords extend a bare number into a measured quantity.
var quantityUnitWords = []string{
	"seconds", "second", "minutes", "minute", "hours", "hour", "days", "day",
	"weeks", "week", "months", "month", "years", "year",
	"ms", "milliseconds", "kb", "mb", "gb", "tb", "bytes",
	"px", "percent", "users", "requests", "documents", "records",
}

// englishStopWords are filtered from normalized token output used for
// similarity, never from entity detection.
var englishStopWords = []string{
	"a", "an", "the", "and", "or", "of", "to", "in", "for", "on", "at",
	"is", "are", "be", "been", "was", "were", "with", "by", "as", "that",
	"this", "it", "its", "from",
}

// NewLanguage constructs the language context. Fails fast when the lexicon
// cannot be compiled; a per-call failure mode does not exist.
func NewLanguage() (*Language, error) {
	tokenPattern, err := regexp.Compile(`[A-Za-z0-9]+(?:'[A-Za-z]+)?|\$[\d,]+(?:\.\d+)?`)
	if err != nil {
		return nil, errors.ModelUnavailableError("compile token pattern", err)
	}

	// Currency, percentages, and bare numbers with thousands separators.
	quantityPattern, err := regexp.Compile(`\$\s?\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s?%|\b\d[\d,]*(?:\.\d+)?\b`)
	if err != nil {
		return nil, errors.ModelUnavailableError("compile quantity pattern", err)
	}

	datePattern, err := regexp.Compile(`\b\d{4}-\d{2}-\d{2}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,\s*\d{4})?\b`)
	if err != nil {
		return nil, errors.ModelUnavailableError("compile date pattern", err)
	}

	return &Language{
		tokenPattern:     tokenPattern,
		quantityPattern:  quantityPattern,
		datePattern:      datePattern,
		conditionMarkers: toSet(conditionMarkerWords),
		orgSuffixes:      toSet(orgSuffixWords),
		quantityUnits:    toSet(quantityUnitWords),
		stopWords:        toSet(englishStopWords),
	}, nil
}

// IsConditionMarker reports whether the lowercased word signals a condition.
func (l *Language) IsConditionMarker(word string) bool {
	_, ok := l.conditionMarkers[word]
	return ok
}

// IsStopWord reports whether the lowercased word is filtered from
// similarity tokens.
func (l *Language) IsStopWord(word string) bool {
	_, ok := l.stopWords[word]
	return ok
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
