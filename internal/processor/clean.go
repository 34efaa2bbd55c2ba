package processor

import (
	"regexp"
	"strings"
	"unicode"
)

// linkPlaceholder replaces stripped URLs so the listener still hears that a
// link was posted.
const linkPlaceholder = " link "

var (
	urlRE = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+`)

	// Emoji blocks: flags, pictographs, emoticons, transport, supplemental
	// symbols, dingbats and misc symbols.
	emojiRE = regexp.MustCompile(`[\x{1F1E6}-\x{1F1FF}\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F700}-\x{1F77F}\x{1F780}-\x{1F7FF}\x{1F800}-\x{1F8FF}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FAFF}\x{2600}-\x{27BF}]+`)

	// Zero-width joiners, variation selectors and skin tone modifiers left
	// behind after stripping the main codepoints.
	emojiGlueRE = regexp.MustCompile(`[\x{200D}\x{FE0F}\x{1F3FB}-\x{1F3FF}]`)

	// Anything outside letters, digits, whitespace and basic punctuation.
	junkRE = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?\-:'"()]`)

	spaceRE = regexp.MustCompile(`\s+`)
)

// Clean strips URLs to a placeholder, removes emoji and markup junk, and
// collapses whitespace. The result is what every downstream filter operates
// on.
func Clean(text string) string {
	text = urlRE.ReplaceAllString(text, linkPlaceholder)
	text = emojiRE.ReplaceAllString(text, "")
	text = emojiGlueRE.ReplaceAllString(text, "")
	text = junkRE.ReplaceAllString(text, " ")
	text = spaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// containsStopWord reports whether any stop word occurs as a whole token in
// the cleaned text. Matching is case-insensitive.
func containsStopWord(cleaned string, stopWords []string) (string, bool) {
	if len(stopWords) == 0 {
		return "", false
	}

	tokens := strings.FieldsFunc(strings.ToLower(cleaned), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, stop := range stopWords {
		stop = strings.ToLower(strings.TrimSpace(stop))
		if stop == "" {
			continue
		}
		for _, tok := range tokens {
			if tok == stop {
				return stop, true
			}
		}
	}
	return "", false
}

// clampLength trims text to max runes, marking the cut with an ellipsis.
func clampLength(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max > 3 {
		return string(runes[:max-3]) + "..."
	}
	return string(runes[:max])
}
