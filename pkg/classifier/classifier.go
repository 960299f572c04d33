// Package classifier proposes a memory category and importance for a piece of
// text using heuristic phrase tables.
//
// Classification is a pure function: the same input always yields the same
// output. The rule table is data-driven so individual rows can be targeted by
// tests and tuned without touching the matching logic.
package classifier

import (
	"strings"
	"unicode"
)

// Category is a closed enumeration of memory types.
type Category string

const (
	CategoryPersonal     Category = "personal"
	CategoryPreference   Category = "preference"
	CategoryProfessional Category = "professional"
	CategoryGoal         Category = "goal"
	CategoryInstruction  Category = "instruction"
	CategoryKnowledge    Category = "knowledge"
	CategoryRelationship Category = "relationship"
	CategoryEvent        Category = "event"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryPreference, CategoryProfessional,
		CategoryGoal, CategoryInstruction, CategoryKnowledge,
		CategoryRelationship, CategoryEvent:
		return true
	}
	return false
}

// Classification is the result of classifying a piece of text.
type Classification struct {
	// Category is the proposed memory type.
	Category Category

	// Importance is the default importance for the matched category,
	// in [0.0, 1.0].
	Importance float64

	// Keywords are normalized tokens extracted from the text.
	Keywords []string
}

// rule binds a phrase set to a category. Rules are evaluated in priority
// order; the first rule with a matching phrase wins.
type rule struct {
	category   Category
	importance float64
	phrases    []string
}

// rules is ordered by category priority:
// instruction > personal > goal > preference > professional > relationship > event > knowledge.
var rules = []rule{
	{
		category:   CategoryInstruction,
		importance: 0.9,
		phrases: []string{
			"remember", "don't forget", "do not forget", "always",
			"never", "make sure", "from now on", "note that",
		},
	},
	{
		category:   CategoryPersonal,
		importance: 0.8,
		phrases: []string{
			"my name is", "i live", "i am from", "i'm from",
			"i was born", "years old", "my birthday", "my address",
			"my phone", "my email",
		},
	},
	{
		category:   CategoryGoal,
		importance: 0.75,
		phrases: []string{
			"i want to", "i plan to", "my goal", "i aim to",
			"i hope to", "i'm trying to", "i am trying to", "i intend to",
		},
	},
	{
		category:   CategoryPreference,
		importance: 0.7,
		phrases: []string{
			"i prefer", "i like", "i love", "i hate", "i dislike",
			"i enjoy", "my favorite", "my favourite", "i'd rather",
			"i would rather",
		},
	},
	{
		category:   CategoryProfessional,
		importance: 0.65,
		phrases: []string{
			"i work", "my job", "my company", "my career", "my team",
			"my manager", "my colleague", "my profession", "my role",
		},
	},
	{
		category:   CategoryRelationship,
		importance: 0.6,
		phrases: []string{
			"my wife", "my husband", "my partner", "my friend",
			"my mother", "my father", "my mom", "my dad",
			"my son", "my daughter", "my brother", "my sister",
		},
	},
	{
		category:   CategoryEvent,
		importance: 0.55,
		phrases: []string{
			"yesterday", "tomorrow", "last week", "next week",
			"deadline", "meeting", "appointment", "scheduled",
			"anniversary",
		},
	},
	{
		category:   CategoryKnowledge,
		importance: 0.6,
		phrases: []string{
			"is a", "is the", "means", "is defined as", "refers to",
			"fact:", "fyi",
		},
	},
}

// unmatchedImportance is the default importance when no rule matches.
const unmatchedImportance = 0.4

// Classify proposes a category, importance and keywords for text.
//
// When phrases from multiple rules match, the highest-priority rule wins.
// Text matching no rule yields CategoryKnowledge with a low default
// importance.
func Classify(text string) Classification {
	lower := strings.ToLower(text)

	for _, r := range rules {
		for _, phrase := range r.phrases {
			if strings.Contains(lower, phrase) {
				return Classification{
					Category:   r.category,
					Importance: r.importance,
					Keywords:   ExtractKeywords(text),
				}
			}
		}
	}

	return Classification{
		Category:   CategoryKnowledge,
		Importance: unmatchedImportance,
		Keywords:   ExtractKeywords(text),
	}
}

// stopwords are common tokens excluded from keyword extraction.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "do": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "he": {}, "her": {}, "his": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {},
	"of": {}, "on": {}, "or": {}, "she": {}, "that": {}, "the": {},
	"their": {}, "they": {}, "this": {}, "to": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "will": {}, "with": {}, "you": {}, "your": {},
	"im": {}, "id": {}, "am": {}, "so": {}, "not": {}, "no": {},
}

// ExtractKeywords tokenizes text into normalized keywords.
//
// Tokens are lowercased, stripped of punctuation, filtered against a stopword
// list, and deduplicated preserving first occurrence.
func ExtractKeywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}

// DefaultImportance returns the default importance for a category, matching
// the rule table.
func DefaultImportance(c Category) float64 {
	for _, r := range rules {
		if r.category == c {
			return r.importance
		}
	}
	return unmatchedImportance
}
