// Package rules extracts business rules (conditionals, thresholds,
// interdictions) from normalized requirement text.
//
// Each pattern kind has its own span-extraction function, dispatched through
// an explicit pattern table rather than scattered conditionals, so trigger
// kinds stay testable in isolation.
package rules

import (
	"strings"

	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/store"
)

// candidate is a rule detection before overlap merging.
type candidate struct {
	kind       store.RuleKind
	condition  nlp.Span
	action     nlp.Span // zero span when absent (interdictions)
	confidence float64
	sentence   nlp.Span
}

// pattern pairs a rule kind with its span-extraction function.
// Extraction runs per sentence and may yield multiple candidates.
type pattern struct {
	kind    store.RuleKind
	extract func(e *Extractor, doc *nlp.Document, sent nlp.Span, toks []nlp.Token) []candidate
}

// patternTable is the ordered trigger set. Order matters only for
// deterministic candidate generation; ranking happens later.
var patternTable = []pattern{
	{store.RuleKindConditional, (*Extractor).extractConditionals},
	{store.RuleKindThreshold, (*Extractor).extractThresholds},
	{store.RuleKindInterdiction, (*Extractor).extractInterdictions},
}

// consequenceMarkers separate a condition from its consequence.
var consequenceMarkers = map[string]struct{}{
	"then": {}, "shall": {}, "must": {}, "will": {}, "should": {},
}

// comparatorPhrases signal a numeric threshold. Two-word phrases are listed
// first so the longest match wins.
var comparatorPhrases = [][]string{
	{"greater", "than"}, {"less", "than"}, {"more", "than"},
	{"at", "least"}, {"at", "most"},
	{"above"}, {"below"}, {"exceeds"}, {"exceed"}, {"within"},
	{"maximum"}, {"minimum"},
}

// negationWords combined with an obligation verb signal an interdiction.
var negationWords = map[string]struct{}{
	"not": {}, "never": {}, "no": {},
}

// obligationVerbs carry the prohibition in an interdiction.
var obligationVerbs = map[string]struct{}{
	"shall": {}, "must": {}, "may": {}, "should": {}, "will": {}, "can": {},
}

// prohibitionWords signal an interdiction on their own.
var prohibitionWords = map[string]struct{}{
	"prohibited": {}, "forbidden": {}, "disallowed": {}, "banned": {},
}

// Confidence model: each trigger kind has a base specificity, boosted when a
// quantity entity grounds the rule in an explicit number. Values are clamped
// to [0,1].
const (
	confConditionalExplicit = 0.70 // if ... then
	confConditionalImplicit = 0.55 // when/unless without explicit consequence marker
	confThreshold           = 0.55
	confInterdictionStrong  = 0.70 // shall not / must not / prohibited
	confInterdictionWeak    = 0.50
	quantityBoost           = 0.15
)

// extractConditionals finds condition-marker ... consequence constructions.
func (e *Extractor) extractConditionals(doc *nlp.Document, sent nlp.Span, toks []nlp.Token) []candidate {
	var out []candidate

	for i, t := range toks {
		if !e.lang.IsConditionMarker(t.Lower) {
			continue
		}

		// Find the consequence marker after the condition marker.
		consequenceIdx := -1
		for j := i + 1; j < len(toks); j++ {
			if _, ok := consequenceMarkers[toks[j].Lower]; ok {
				consequenceIdx = j
				break
			}
		}

		var cond, action nlp.Span
		explicit := false
		switch {
		case consequenceIdx > 0:
			// "if X then Y" / "when X the system shall Y"
			cond = nlp.Span{Start: t.End, End: toks[consequenceIdx].Start}
			action = nlp.Span{Start: toks[consequenceIdx].End, End: sent.End}
			explicit = toks[consequenceIdx].Lower == "then"
		case i > 0:
			// "Y when X": condition trails the consequence
			cond = nlp.Span{Start: t.End, End: sent.End}
			action = nlp.Span{Start: sent.Start, End: t.Start}
		default:
			// Marker opens the sentence with no consequence boundary;
			// treat everything after the marker as the condition.
			cond = nlp.Span{Start: t.End, End: sent.End}
		}

		cond = trimPunct(doc.Text, cond)
		action = trimPunct(doc.Text, action)
		if cond.End <= cond.Start {
			continue
		}

		conf := confConditionalImplicit
		if explicit {
			conf = confConditionalExplicit
		}
		if e.spanHasQuantity(doc, cond) {
			conf += quantityBoost
		}

		out = append(out, candidate{
			kind:       store.RuleKindConditional,
			condition:  cond,
			action:     action,
			confidence: clamp01(conf),
			sentence:   sent,
		})
		// One conditional per marker; remaining markers in the sentence
		// produce their own candidates and merge later if they overlap.
	}
	return out
}

// extractThresholds finds comparator phrases backed by a quantity entity.
func (e *Extractor) extractThresholds(doc *nlp.Document, sent nlp.Span, toks []nlp.Token) []candidate {
	var out []candidate

	for i := 0; i < len(toks); i++ {
		phraseLen := matchComparator(toks, i)
		if phraseLen == 0 {
			continue
		}

		// A threshold needs a quantity following the comparator in the
		// same sentence.
		quantity := e.quantityAfter(doc, toks[i].Start, sent.End)
		if quantity == nil {
			continue
		}

		// Condition: clause around comparator and quantity, bounded by the
		// nearest comma. Action: the remainder of the sentence.
		clauseStart, clauseEnd := clauseBounds(doc.Text, sent, toks[i].Start, quantity.End)
		cond := trimPunct(doc.Text, nlp.Span{Start: clauseStart, End: clauseEnd})

		action := nlp.Span{}
		if clauseEnd < sent.End {
			action = trimPunct(doc.Text, nlp.Span{Start: clauseEnd, End: sent.End})
		} else if clauseStart > sent.Start {
			action = trimPunct(doc.Text, nlp.Span{Start: sent.Start, End: clauseStart})
		}

		// Quantity presence is what qualified the trigger, so the boost
		// always applies; bare comparators never reach this point.
		out = append(out, candidate{
			kind:       store.RuleKindThreshold,
			condition:  cond,
			action:     action,
			confidence: clamp01(confThreshold + quantityBoost),
			sentence:   sent,
		})

		i += phraseLen - 1
	}
	return out
}

// extractInterdictions finds negated obligations and prohibition verbs.
func (e *Extractor) extractInterdictions(doc *nlp.Document, sent nlp.Span, toks []nlp.Token) []candidate {
	var out []candidate

	for i, t := range toks {
		strong := false
		matched := false

		if _, isProhibition := prohibitionWords[t.Lower]; isProhibition {
			matched = true
			strong = true
		}

		// obligation verb immediately followed by negation: "shall not"
		if _, isObligation := obligationVerbs[t.Lower]; isObligation && i+1 < len(toks) {
			if _, isNeg := negationWords[toks[i+1].Lower]; isNeg {
				matched = true
				strong = t.Lower == "shall" || t.Lower == "must"
			}
		}

		// "never" before an obligation verb: "never exceeds", "never shall"
		if t.Lower == "never" {
			matched = true
		}

		if !matched {
			continue
		}

		// The whole sentence is the prohibited behavior; the consequence
		// span is optional for interdictions and stays empty.
		cond := trimPunct(doc.Text, sent)

		conf := confInterdictionWeak
		if strong {
			conf = confInterdictionStrong
		}
		if e.spanHasQuantity(doc, cond) {
			conf += quantityBoost
		}

		out = append(out, candidate{
			kind:       store.RuleKindInterdiction,
			condition:  cond,
			confidence: clamp01(conf),
			sentence:   sent,
		})
		break // one interdiction per sentence; duplicates merge to the same span anyway
	}
	return out
}

// matchComparator returns the matched phrase length at position i, 0 if none.
func matchComparator(toks []nlp.Token, i int) int {
	for _, phrase := range comparatorPhrases {
		if i+len(phrase) > len(toks) {
			continue
		}
		match := true
		for j, w := range phrase {
			if toks[i+j].Lower != w {
				match = false
				break
			}
		}
		if match {
			return len(phrase)
		}
	}
	return 0
}

// clauseBounds expands [from, to] to the enclosing comma-delimited clause.
func clauseBounds(text string, sent nlp.Span, from, to int) (int, int) {
	start := sent.Start
	for i := from; i > sent.Start; i-- {
		if text[i-1] == ',' {
			start = i
			break
		}
	}
	end := sent.End
	for i := to; i < sent.End; i++ {
		if text[i] == ',' {
			end = i
			break
		}
	}
	return start, end
}

// trimPunct shrinks a span to exclude surrounding whitespace and punctuation.
func trimPunct(text string, s nlp.Span) nlp.Span {
	for s.Start < s.End {
		c := text[s.Start]
		if c == ' ' || c == '\t' || c == '\n' || c == ',' || c == ';' || c == ':' {
			s.Start++
			continue
		}
		break
	}
	for s.End > s.Start {
		c := text[s.End-1]
		if c == ' ' || c == '\t' || c == '\n' || c == ',' || c == ';' || c == ':' || c == '.' {
			s.End--
			continue
		}
		break
	}
	return s
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// tokensIn returns the document tokens lying inside span.
func tokensIn(doc *nlp.Document, span nlp.Span) []nlp.Token {
	var out []nlp.Token
	for _, t := range doc.Tokens {
		if t.Start >= span.Start && t.End <= span.End {
			out = append(out, t)
		}
	}
	return out
}

// spanText returns the text of a span, empty for the zero span.
func spanText(text string, s nlp.Span) string {
	if s.End <= s.Start {
		return ""
	}
	return strings.TrimSpace(text[s.Start:s.End])
}
