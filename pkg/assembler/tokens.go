package assembler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EstimateTokens estimates the token count of text.
//
// This is a cheap length-based proxy (roughly four characters per token for
// English prose), not a real tokenizer. Budgets sized with it should leave
// headroom rather than aim for exact fill.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text)/4 + 1
}

// tokenSet splits text into a normalized token set for similarity checks.
func tokenSet(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// diceSimilarity computes the Sørensen–Dice coefficient between two token
// sets, in [0, 1].
func diceSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	common := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			common++
		}
	}

	return 2.0 * float64(common) / float64(len(a)+len(b))
}
