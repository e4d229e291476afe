package rules

import (
	"sort"

	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/store"
)

// Extractor detects business rules in normalized documents. It holds no
// mutable state; a single Extractor is safe for concurrent use.
type Extractor struct {
	lang *nlp.Language
}

// New returns an Extractor bound to a language context.
func New(lang *nlp.Language) *Extractor {
	return &Extractor{lang: lang}
}

// Extract runs every pattern kind over each sentence of the document,
// merges overlapping detections, and returns rules ranked by confidence
// descending. Output is deterministic for a given document.
func (e *Extractor) Extract(doc *nlp.Document) []*store.BusinessRule {
	if doc == nil || len(doc.Tokens) == 0 {
		return nil
	}

	var candidates []candidate
	for _, sent := range doc.Sentences {
		toks := tokensIn(doc, sent)
		if len(toks) == 0 {
			continue
		}
		for _, p := range patternTable {
			candidates = append(candidates, p.extract(e, doc, sent, toks)...)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	merged := mergeOverlaps(candidates)

	rules := make([]*store.BusinessRule, 0, len(merged))
	for _, c := range merged {
		start, end := c.ruleSpan()
		rules = append(rules, &store.BusinessRule{
			Kind:       c.kind,
			Condition:  spanText(doc.Text, c.condition),
			Action:     spanText(doc.Text, c.action),
			Confidence: c.confidence,
			Start:      start,
			End:        end,
		})
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		return rules[i].Start < rules[j].Start
	})
	return rules
}

// ruleSpan is the overall extent of a candidate in the source text.
func (c candidate) ruleSpan() (int, int) {
	start, end := c.condition.Start, c.condition.End
	if c.action.End > c.action.Start {
		if c.action.Start < start {
			start = c.action.Start
		}
		if c.action.End > end {
			end = c.action.End
		}
	}
	return start, end
}

// mergeOverlaps collapses candidates whose spans overlap by more than half
// the shorter span, keeping the higher-confidence detection. A sentence that
// reads both as a conditional and as a threshold yields one rule, not two.
func mergeOverlaps(cands []candidate) []candidate {
	// Higher confidence first so survivors absorb weaker overlaps.
	// Stable tie-break on span start keeps output deterministic.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].confidence != cands[j].confidence {
			return cands[i].confidence > cands[j].confidence
		}
		si, _ := cands[i].ruleSpan()
		sj, _ := cands[j].ruleSpan()
		return si < sj
	})

	var kept []candidate
	for _, c := range cands {
		absorbed := false
		for _, k := range kept {
			if overlapsMajority(c, k) {
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, c)
		}
	}
	return kept
}

// overlapsMajority reports whether two candidates overlap by more than half
// of the shorter span.
func overlapsMajority(a, b candidate) bool {
	as, ae := a.ruleSpan()
	bs, be := b.ruleSpan()

	lo, hi := max(as, bs), min(ae, be)
	if hi <= lo {
		return false
	}
	overlap := hi - lo

	shorter := ae - as
	if be-bs < shorter {
		shorter = be - bs
	}
	if shorter <= 0 {
		return false
	}
	return overlap*2 > shorter
}

// spanHasQuantity reports whether a quantity entity lies inside the span.
func (e *Extractor) spanHasQuantity(doc *nlp.Document, span nlp.Span) bool {
	for _, ent := range doc.Entities {
		if ent.Type == store.EntityQuantity && ent.Start >= span.Start && ent.End <= span.End {
			return true
		}
	}
	return false
}

// quantityAfter returns the first quantity entity between from and end,
// nil when none exists.
func (e *Extractor) quantityAfter(doc *nlp.Document, from, end int) *store.Entity {
	for i := range doc.Entities {
		ent := &doc.Entities[i]
		if ent.Type == store.EntityQuantity && ent.Start >= from && ent.End <= end {
			return ent
		}
	}
	return nil
}
