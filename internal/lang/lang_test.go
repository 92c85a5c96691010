package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_EnglishText(t *testing.T) {
	tag, _ := Detect("The quick brown fox jumps over the lazy dog.")
	assert.Equal(t, TagEnglish, tag)
}

func TestDetect_KoreanText(t *testing.T) {
	tag, confidence := Detect("안녕하세요 반갑습니다")
	assert.Equal(t, TagKorean, tag)
	assert.Greater(t, confidence, 0.0)
}

func TestDetect_EmptyTextDefaultsEnglish(t *testing.T) {
	tag, confidence := Detect("")
	assert.Equal(t, TagEnglish, tag)
	assert.Equal(t, 0.0, confidence)
}

func TestDetect_MixedTextWithAnyHangulRoutesKorean(t *testing.T) {
	// Given: a string dominated by Latin letters but containing Hangul
	tag, _ := Detect("hello world this is mostly english 안")

	// Then: the presence of any Hangul rune routes the whole string Korean
	assert.Equal(t, TagKorean, tag)
}

func TestNonWhitespaceSegmented(t *testing.T) {
	assert.True(t, NonWhitespaceSegmented(TagKorean))
	assert.False(t, NonWhitespaceSegmented(TagEnglish))
}

func TestTokenizedSurfaceForm_EnglishReturnsEmpty(t *testing.T) {
	// English has no registered tokenizer; no tokenized surface form needed.
	assert.Equal(t, "", TokenizedSurfaceForm(TagEnglish, "hello world"))
}

func TestTokenizedSurfaceForm_KoreanProducesWhitespaceJoinedTokens(t *testing.T) {
	form := TokenizedSurfaceForm(TagKorean, "안녕하세요")
	assert.NotEmpty(t, form)

	// Every token must be a byte-identical substring of the input, per contract.
	for _, tok := range splitOnSpace(form) {
		assert.Contains(t, "안녕하세요", tok)
	}
}

func splitOnSpace(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == ' ' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
