package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// modifierHit is one occurrence of a speed-modifier phrase in a segment.
type modifierHit struct {
	phrase string
	value  float64
	start  int
	end    int
}

// findModifiers locates every modifier occurrence in the segment. Hits
// contained inside a longer hit are dropped, so "very slowly" suppresses the
// inner "slowly".
func (lx *Lexicon) findModifiers(seg string) []modifierHit {
	var hits []modifierHit
	for _, m := range lx.modifiers {
		for _, loc := range m.re.FindAllStringIndex(seg, -1) {
			hits = append(hits, modifierHit{phrase: m.phrase, value: m.value, start: loc[0], end: loc[1]})
		}
	}

	kept := hits[:0]
	for _, h := range hits {
		contained := false
		for _, other := range hits {
			if other.start <= h.start && h.end <= other.end && other.end-other.start > h.end-h.start {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, h)
		}
	}
	return kept
}

// spanDistance is the gap in characters between a hit and a match span;
// zero when they touch or overlap.
func spanDistance(h modifierHit, m match) int {
	switch {
	case h.end <= m.start:
		return m.start - h.end
	case h.start >= m.end:
		return h.start - m.end
	}
	return 0
}

// assignModifiers attaches each modifier occurrence to the physically
// nearest match, then keeps, per match, the longest phrase that landed
// within the attachment window. A modifier is never claimed by a match that
// is farther from it than another match, regardless of registration order.
func assignModifiers(hits []modifierHit, matches []match, window int) map[int]modifierHit {
	claimed := map[int][]modifierHit{}
	for _, h := range hits {
		nearest, nearestDist := -1, 0
		for i, m := range matches {
			d := spanDistance(h, m)
			if nearest < 0 || d < nearestDist {
				nearest, nearestDist = i, d
			}
		}
		if nearest >= 0 && nearestDist <= window {
			claimed[nearest] = append(claimed[nearest], h)
		}
	}

	chosen := map[int]modifierHit{}
	for i, candidates := range claimed {
		best := candidates[0]
		for _, h := range candidates[1:] {
			if len(h.phrase) > len(best.phrase) {
				best = h
			}
		}
		chosen[i] = best
	}
	return chosen
}

// shapeSizeKeys maps each shape kind's size parameter to the spoken
// keywords that can introduce it.
var sizeKeywordRE = regexp.MustCompile(`\b(side|radius|size|segments?|length)\s+(\d+(?:\.\d+)?)\b`)

var starPointsRE = regexp.MustCompile(`\bpoints?\s+(\d+)\b`)

// window returns the text surrounding a match span, bounded by the
// configured attachment window on both sides.
func window(seg string, m match, width int) string {
	lo := m.start - width
	if lo < 0 {
		lo = 0
	}
	hi := m.end + width
	if hi > len(seg) {
		hi = len(seg)
	}
	return seg[lo:hi]
}

// scanShapeSize extracts an explicit "keyword number" size from the window
// around a shape match, falling back to the size-adjective table. The
// second return value reports whether anything was found.
func (lx *Lexicon) scanShapeSize(win string) (float64, bool) {
	if loc := sizeKeywordRE.FindStringSubmatch(win); loc != nil {
		if v, ok := parseNumber(loc[2]); ok {
			return v, true
		}
	}
	for _, word := range strings.Fields(win) {
		if v, ok := lx.SizeAdjective(word); ok {
			return v, true
		}
	}
	return 0, false
}

// scanStarPoints extracts an optional "points N" count for star commands.
func scanStarPoints(win string) (float64, bool) {
	if loc := starPointsRE.FindStringSubmatch(win); loc != nil {
		return parseNumber(loc[1])
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// clamp01 bounds an explicit speed to the unit interval.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
