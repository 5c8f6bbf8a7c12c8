package memory

import (
	"sort"
	"strings"
	"unicode"
)

// conceptStopwords removes function words before frequency ranking.
var conceptStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "would": {},
	"there": {}, "their": {}, "what": {}, "about": {}, "which": {},
	"when": {}, "were": {}, "been": {}, "more": {}, "very": {}, "some": {},
	"just": {}, "into": {}, "than": {}, "then": {}, "them": {}, "these": {},
	"because": {}, "over": {}, "such": {}, "only": {}, "also": {},
	"most": {}, "other": {}, "after": {}, "before": {}, "where": {},
	"while": {}, "could": {}, "should": {}, "being": {}, "does": {},
	"doing": {}, "your": {}, "here": {}, "like": {}, "between": {},
}

// ExtractConcepts returns up to max dominant concept labels from text:
// lowercased words of at least three letters, stopwords removed, ranked
// by frequency with alphabetical tie-breaking.
func ExtractConcepts(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, word := range splitWords(text) {
		if len(word) < 3 {
			continue
		}
		if _, stop := conceptStopwords[word]; stop {
			continue
		}
		counts[word]++
	}
	if len(counts) == 0 {
		return nil
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > max {
		labels = labels[:max]
	}
	return labels
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
