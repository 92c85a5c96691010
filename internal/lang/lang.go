// Package lang assigns a language tag to text and, for configured
// non-whitespace-segmented languages, produces a whitespace-joined surface
// token form that an FTS engine without a native analyzer for that script
// can index.
package lang

import "unicode"

// Tag is one of the closed, small set of language tags the analyzer emits.
type Tag string

const (
	TagEnglish Tag = "en"
	TagKorean  Tag = "ko"
)

// NonWhitespaceSegmented reports whether tag requires a tokenized_text
// surface form rather than relying on the default whitespace-aware FTS
// analyzer.
func NonWhitespaceSegmented(tag Tag) bool {
	return tag == TagKorean
}

// Detect classifies text by Unicode script majority: any Hangul
// syllable/jamo rune routes the whole string to Korean; otherwise English.
// Confidence is advisory; callers use the tag unconditionally.
func Detect(text string) (Tag, float64) {
	var hangul, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if isHangul(r) {
			hangul++
		}
	}
	if letters == 0 {
		return TagEnglish, 0
	}
	ratio := float64(hangul) / float64(letters)
	if hangul > 0 {
		return TagKorean, ratio
	}
	return TagEnglish, 1 - ratio
}

func isHangul(r rune) bool {
	return unicode.Is(unicode.Hangul, r)
}

// Tokenizer produces surface tokens for a non-whitespace-segmented language.
// Tokens must be byte-identical substrings of the input.
type Tokenizer interface {
	Tokenize(text string) []string
}

// tokenizers is the open registry keyed by Tag, extensible for future
// additions (ja, zh) without touching Detect.
var tokenizers = map[Tag]Tokenizer{
	TagKorean: koreanBigramTokenizer{},
}

// TokenizedSurfaceForm returns the whitespace-joined surface-token form for
// tag, or "" if tag is whitespace-segmented (no tokenizer registered).
func TokenizedSurfaceForm(tag Tag, text string) string {
	tk, ok := tokenizers[tag]
	if !ok {
		return ""
	}
	tokens := tk.Tokenize(text)
	return joinSpace(tokens)
}

func joinSpace(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	total := len(tokens) - 1
	for _, t := range tokens {
		total += len(t)
	}
	buf := make([]byte, 0, total)
	for i, t := range tokens {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, t...)
	}
	return string(buf)
}
