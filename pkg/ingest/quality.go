package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/quernlabs/quern/pkg/models"
)

// Quality gate rejection codes, written to Document.FailReason.
const (
	QualityEmptyContent       = "EMPTY_CONTENT"
	QualityTextTooShort       = "TEXT_TOO_SHORT"
	QualityNoiseRatioExceeded = "NOISE_RATIO_EXCEEDED"
)

// Per-chunk quality flags.
const (
	FlagShortChunk   = "SHORT_CHUNK"
	FlagHighNoise    = "HIGH_NOISE"
	FlagNoTerminator = "NO_TERMINATOR"
)

// Completeness values stored on chunks.
const (
	CompletenessComplete = "complete"
	CompletenessPartial  = "partial"
)

// chunkNoiseThreshold flags individual chunks noisier than the whole
// document is allowed to be on average.
const chunkNoiseThreshold = 0.3

// shortChunkRunes is the floor below which a chunk carries too little
// text to embed usefully.
const shortChunkRunes = 80

// qualityGate checks converted markdown against the profile snapshot
// the document was ingested under. It returns a rejection code and
// false when the content is not worth chunking.
func qualityGate(content string, cfg models.ProfileConfig) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return QualityEmptyContent, false
	}
	if utf8.RuneCountInString(trimmed) < cfg.MinTextLength {
		return QualityTextTooShort, false
	}
	if cfg.MaxNoiseRatio > 0 && noiseRatio(trimmed) > cfg.MaxNoiseRatio {
		return QualityNoiseRatioExceeded, false
	}
	return "", true
}

// scoreChunk rates one chunk in [0, 1]. Each defect subtracts a fixed
// penalty and contributes a flag for the metrics histogram.
func scoreChunk(content string) (float64, []string) {
	score := 1.0
	var flags []string

	if utf8.RuneCountInString(content) < shortChunkRunes {
		score -= 0.2
		flags = append(flags, FlagShortChunk)
	}
	if noiseRatio(content) > chunkNoiseThreshold {
		score -= 0.3
		flags = append(flags, FlagHighNoise)
	}
	if !endsTerminated(content) {
		score -= 0.1
		flags = append(flags, FlagNoTerminator)
	}

	if score < 0 {
		score = 0
	}
	return score, flags
}

// markdownPunct is punctuation that legitimately appears in converted
// markdown and must not count as noise.
const markdownPunct = `.,;:!?'"()[]{}<>-_*#` + "`" + `~=+/\|&%$@^`

// noiseRatio returns the share of runes that are neither letters,
// digits, whitespace, nor ordinary punctuation. OCR artifacts and
// binary spill push this toward 1.
func noiseRatio(s string) float64 {
	if s == "" {
		return 0
	}
	var noise, total int
	for _, r := range s {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
		case strings.ContainsRune(markdownPunct, r):
		default:
			noise++
		}
	}
	return float64(noise) / float64(total)
}

// endsTerminated reports whether the text finishes on a sentence
// terminator, ignoring trailing markdown emphasis and quotes.
func endsTerminated(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("*_`\")]}»'", r)
	})
	if s == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(".!?:", last)
}

// estimateTokens approximates the token count at four runes per token,
// the usual heuristic for English prose. Non-empty text counts as at
// least one token.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := utf8.RuneCountInString(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
