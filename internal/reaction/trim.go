// ABOUTME: Post-filter that trims over-long generated replies at sentence boundaries
// ABOUTME: Never cuts mid-sentence; falls back to the untrimmed text

package reaction

import "strings"

const (
	// Replies over this many runes get trimmed.
	nominalReplyCap = 500
	// Sentence boundaries are searched up to this multiple of the cap.
	trimSearchFactor = 1.5
)

var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// TrimReply shortens text that exceeds the nominal cap to the last complete
// sentence within ~1.5× the cap. If no sentence boundary exists in that
// range, the untrimmed text is returned rather than cutting mid-sentence.
func TrimReply(text string) string {
	runes := []rune(text)
	if len(runes) <= nominalReplyCap {
		return text
	}

	searchLimit := int(float64(nominalReplyCap) * trimSearchFactor)
	if searchLimit > len(runes) {
		searchLimit = len(runes)
	}
	window := string(runes[:searchLimit])

	cut := -1
	for _, end := range sentenceEnders {
		if i := strings.LastIndex(window, end); i >= 0 && i+1 > cut {
			cut = i + 1
		}
	}
	// A reply that ends exactly on a terminator has no trailing space to
	// match; check the final rune of the window too.
	if cut < 0 {
		switch window[len(window)-1] {
		case '.', '!', '?':
			cut = len(window)
		}
	}
	if cut < 0 {
		return text
	}
	return strings.TrimSpace(window[:cut])
}
