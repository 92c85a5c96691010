package lang

import "unicode"

// koreanBigramTokenizer emits overlapping bigrams over maximal runs of
// Hangul runes, and whitespace-delimited tokens elsewhere. This is the
// same shape as Bleve's CJK analyzer (github.com/blevesearch/bleve/v2's
// analysis/lang/cjk; this codebase imports only bleve's English analyzer):
// overlapping 2-rune windows segment a non-whitespace
// script without a dictionary. It is hand-written here rather than calling
// into that internal package directly, since its non-top-level API surface
// isn't one this codebase otherwise depends on with confidence; bigramming
// is simple enough to reproduce exactly and keep the byte-identical-
// substring guarantee spec requires.
type koreanBigramTokenizer struct{}

func (koreanBigramTokenizer) Tokenize(text string) []string {
	runs := splitRuns(text)
	var tokens []string
	for _, run := range runs {
		if run.hangul {
			tokens = append(tokens, bigrams(run.runes)...)
		} else {
			tokens = append(tokens, whitespaceTokens(run.runes)...)
		}
	}
	return tokens
}

type run struct {
	runes  []rune
	hangul bool
}

// splitRuns partitions text into maximal runs of Hangul vs. non-Hangul runes.
func splitRuns(text string) []run {
	var runs []run
	var current []rune
	var currentHangul bool
	first := true

	flush := func() {
		if len(current) > 0 {
			runs = append(runs, run{runes: current, hangul: currentHangul})
			current = nil
		}
	}

	for _, r := range text {
		h := isHangul(r)
		if first {
			currentHangul = h
			first = false
		} else if h != currentHangul {
			flush()
			currentHangul = h
		}
		current = append(current, r)
	}
	flush()
	return runs
}

// bigrams returns overlapping 2-rune substrings; a lone trailing rune
// (including a single-rune run) is emitted as a unigram so no character is
// dropped from the index.
func bigrams(runes []rune) []string {
	if len(runes) == 0 {
		return nil
	}
	if len(runes) == 1 {
		return []string{string(runes)}
	}
	tokens := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		tokens = append(tokens, string(runes[i:i+2]))
	}
	return tokens
}

// whitespaceTokens splits a non-Hangul run on Unicode whitespace.
func whitespaceTokens(runes []rune) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = nil
		}
	}
	for _, r := range runes {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}
