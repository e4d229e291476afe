package nlp

import (
	"strings"
	"unicode"

	"github.com/reqlens/reqlens/internal/store"
)

// Token is a single token with character offsets into the source text.
type Token struct {
	Text  string
	Lower string
	Start int
	End   int
}

// Span is a half-open character range [Start, End) in the source text.
type Span struct {
	Start int
	End   int
}

// Document is the normalized form of one requirement text.
type Document struct {
	Text      string
	Tokens    []Token
	Sentences []Span
	Entities  []store.Entity
}

// SimilarityTokens returns the lowercased tokens with stop words removed,
// the form used for embedding and keyword overlap.
func (d *Document) SimilarityTokens(lang *Language) []string {
	out := make([]string, 0, len(d.Tokens))
	for _, t := range d.Tokens {
		if !lang.IsStopWord(t.Lower) {
			out = append(out, t.Lower)
		}
	}
	return out
}

// Sentence returns the text of the sentence containing offset, or the whole
// text when segmentation found no boundaries.
func (d *Document) Sentence(offset int) Span {
	for _, s := range d.Sentences {
		if offset >= s.Start && offset < s.End {
			return s
		}
	}
	return Span{Start: 0, End: len(d.Text)}
}

// Normalize tokenizes text and annotates entities. A pure function of the
// input and the language context: identical input yields identical output.
// Empty input yields an empty document, not an error.
func Normalize(lang *Language, text string) *Document {
	doc := &Document{Text: text}
	if strings.TrimSpace(text) == "" {
		return doc
	}

	doc.Tokens = tokenize(lang, text)
	doc.Sentences = segmentSentences(text)
	doc.Entities = detectEntities(lang, text, doc.Tokens)
	return doc
}

// tokenize splits text into tokens with offsets.
func tokenize(lang *Language, text string) []Token {
	matches := lang.tokenPattern.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		raw := text[m[0]:m[1]]
		tokens = append(tokens, Token{
			Text:  raw,
			Lower: strings.ToLower(raw),
			Start: m[0],
			End:   m[1],
		})
	}
	return tokens
}

// segmentSentences splits on terminal punctuation. Offsets cover the
// original text including trailing whitespace trimmed from each span.
func segmentSentences(text string) []Span {
	var spans []Span
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == ';' {
			span := trimSpan(text, start, i+1)
			if span.End > span.Start {
				spans = append(spans, span)
			}
			start = i + 1
		}
	}
	if start < len(text) {
		span := trimSpan(text, start, len(text))
		if span.End > span.Start {
			spans = append(spans, span)
		}
	}
	return spans
}

// trimSpan shrinks [start,end) to exclude surrounding whitespace.
func trimSpan(text string, start, end int) Span {
	for start < end && unicode.IsSpace(rune(text[start])) {
		start++
	}
	for end > start && unicode.IsSpace(rune(text[end-1])) {
		end--
	}
	return Span{Start: start, End: end}
}

// detectEntities finds organizations, quantities, dates, and condition
// markers. Results are ordered by start offset; overlapping detections
// prefer the more specific type (date over quantity).
func detectEntities(lang *Language, text string, tokens []Token) []store.Entity {
	var entities []store.Entity
	claimed := make([]Span, 0, 8)

	overlap := func(start, end int) bool {
		for _, c := range claimed {
			if start < c.End && end > c.Start {
				return true
			}
		}
		return false
	}
	claim := func(e store.Entity) {
		entities = append(entities, e)
		claimed = append(claimed, Span{Start: e.Start, End: e.End})
	}

	// Dates first: a date's digits must not re-match as quantities.
	for _, m := range lang.datePattern.FindAllStringIndex(text, -1) {
		claim(store.Entity{
			Text:  text[m[0]:m[1]],
			Type:  store.EntityDate,
			Start: m[0],
			End:   m[1],
		})
	}

	// Quantities, extended by a following unit word.
	for _, m := range lang.quantityPattern.FindAllStringIndex(text, -1) {
		if overlap(m[0], m[1]) {
			continue
		}
		end := extendWithUnit(lang, text, tokens, m[1])
		claim(store.Entity{
			Text:  text[m[0]:end],
			Type:  store.EntityQuantity,
			Start: m[0],
			End:   end,
		})
	}

	// Organizations: capitalized run ending in an org suffix.
	for i, t := range tokens {
		if _, ok := lang.orgSuffixes[t.Lower]; !ok || !startsUpper(t.Text) {
			continue
		}
		start := t.Start
		for j := i - 1; j >= 0 && startsUpper(tokens[j].Text); j-- {
			start = tokens[j].Start
		}
		if start < t.Start && !overlap(start, t.End) {
			claim(store.Entity{
				Text:  text[start:t.End],
				Type:  store.EntityOrganization,
				Start: start,
				End:   t.End,
			})
		}
	}

	// Condition markers.
	for _, t := range tokens {
		if lang.IsConditionMarker(t.Lower) && !overlap(t.Start, t.End) {
			claim(store.Entity{
				Text:  t.Text,
				Type:  store.EntityConditionMarker,
				Start: t.Start,
				End:   t.End,
			})
		}
	}

	sortEntities(entities)
	return entities
}

// extendWithUnit extends a quantity match to include a following unit word.
func extendWithUnit(lang *Language, text string, tokens []Token, end int) int {
	for _, t := range tokens {
		if t.Start < end {
			continue
		}
		// Only adjacent tokens (separated by whitespace) extend the quantity
		if strings.TrimSpace(text[end:t.Start]) != "" {
			return end
		}
		if _, ok := lang.quantityUnits[t.Lower]; ok {
			return t.End
		}
		return end
	}
	return end
}

func startsUpper(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsUpper(rune(s[0]))
}

// sortEntities orders entities by start offset (insertion sort, lists are tiny).
func sortEntities(entities []store.Entity) {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Start < entities[j-1].Start; j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}
