package parser

import "strings"

// Transition words that start a new segment. The multi-word forms document
// the continuations the segmenter recognizes; only the leading transition
// word is consumed at the cut, so "then turn right" leaves "turn right" for
// the next segment.
var transitionWords = []string{"then move", "then turn", "then", "and"}

// boundaryWords are the single words the segmenter actually cuts on,
// derived from the transition list.
var boundaryWords = func() map[string]bool {
	words := map[string]bool{}
	for _, t := range transitionWords {
		first, _, _ := strings.Cut(t, " ")
		words[first] = true
	}
	return words
}()

// segments splits normalized text on commas and transition words. Every
// segment is parsed independently and results concatenate in document
// order.
func segments(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		var current []string
		flush := func() {
			if len(current) > 0 {
				out = append(out, strings.Join(current, " "))
				current = nil
			}
		}
		for _, word := range strings.Fields(part) {
			if boundaryWords[word] {
				flush()
				continue
			}
			current = append(current, word)
		}
		flush()
	}
	return out
}
