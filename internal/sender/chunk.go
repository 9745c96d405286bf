package sender

import "strings"

// sentence-ending runes for the first splitting tier.
func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// splitChunks breaks text into ordered chunks of at most limit characters.
//
// Split points are chosen by a three-tier preference, searching backward
// from the chunk boundary but never past the chunk's midpoint:
//  1. after a sentence-ending mark followed by a space or the window end;
//  2. at the last space;
//  3. a hard cut exactly at the boundary.
//
// Chunks are trimmed of surrounding whitespace and empty chunks dropped, so
// concatenating the chunks reproduces the original content minus the
// whitespace that was split on.
func splitChunks(text string, limit int) []string {
	runes := []rune(text)
	var chunks []string

	for len(runes) > limit {
		window := runes[:limit]
		cut := findSplit(window)

		chunk := strings.TrimSpace(string(window[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}

	last := strings.TrimSpace(string(runes))
	if last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}

// findSplit picks the cut index for a full window, in (mid, len(window)].
func findSplit(window []rune) int {
	mid := len(window) / 2

	// Tier 1: sentence end followed by a space or the end of the window.
	for i := len(window); i > mid; i-- {
		if !isSentenceEnd(window[i-1]) {
			continue
		}
		if i == len(window) || window[i] == ' ' {
			return i
		}
	}

	// Tier 2: last space.
	for i := len(window) - 1; i > mid; i-- {
		if window[i] == ' ' {
			return i
		}
	}

	// Tier 3: hard cut at the boundary.
	return len(window)
}
